package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/geny-memory/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories for a prompt",
		Long:  "Search memories, then greedily pack them into a character budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", search.DefaultContextBudget, "Max characters in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	result, err := a.engine.Context(cmd.Context(), query, budget)
	if err != nil {
		exitErr("context", err)
	}

	if formatFlag == "text" {
		fmt.Fprint(cmd.OutOrStdout(), result.String())
		return
	}

	printJSON(cmd, result)
}
