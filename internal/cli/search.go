package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by keyword",
		Long: "Rank memories by how many query terms they contain, then by term frequency, " +
			"then by recency. With no match the most recent memories are returned.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().IntP("limit", "k", 5, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	results, err := a.engine.Search(cmd.Context(), query, limit)
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		out := cmd.OutOrStdout()
		for _, r := range results {
			text := r.Text
			if r.Excerpt != "" {
				text = r.Excerpt
			}
			fmt.Fprintf(out, "#%d [%s] %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), text)
		}
		return
	}

	printJSON(cmd, results)
}
