package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Rewrite the mirror from the ledger now",
		Run:   runFlush,
	}

	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run one maintenance cycle now",
		Long:  "Snapshot the ledger, rebuild the index and rewrite the mirror, regardless of the schedule.",
		Run:   runMaintain,
	}

	RootCmd.AddCommand(flushCmd, maintainCmd)
}

func runFlush(cmd *cobra.Command, args []string) {
	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	snap, err := a.engine.Flush(cmd.Context())
	if err != nil {
		exitErr("flush", err)
	}

	printJSON(cmd, map[string]any{
		"ok":          true,
		"path":        a.cfg.MirrorPath,
		"count":       snap.Count,
		"snapshot_id": snap.SnapshotID,
	})
}

func runMaintain(cmd *cobra.Command, args []string) {
	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	report, err := a.engine.Maintain(cmd.Context())
	if err != nil {
		exitErr("maintain", err)
	}

	printJSON(cmd, report)
}
