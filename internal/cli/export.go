package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories in mirror format",
		Long:  "Write a full snapshot in mirror format to --out, or to stdout when --out is not set.",
		Run:   runExport,
	}

	cmd.Flags().StringP("out", "o", "", "Output file (written atomically)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if out == "" {
		snap, err := a.engine.Snapshot(cmd.Context())
		if err != nil {
			exitErr("export", err)
		}
		printJSON(cmd, snap)
		return
	}

	snap, err := a.engine.Export(cmd.Context(), out)
	if err != nil {
		exitErr("export", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"path":%q,"count":%d,"snapshot_id":%q}`+"\n", out, snap.Count, snap.SnapshotID)
}
