package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent memories",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	entries, err := a.engine.Recent(cmd.Context(), limit)
	if err != nil {
		exitErr("recent", err)
	}

	if formatFlag == "text" {
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Text)
		}
		return
	}

	printJSON(cmd, entries)
}
