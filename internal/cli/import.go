package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/geny-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from a mirror-format snapshot",
		Long: "Import entries from a snapshot file (\"-\" for stdin), or from the configured mirror " +
			"when no file is given. Entries already present are skipped; the rest get new ids.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	var snap *store.MirrorSnapshot
	switch {
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			exitErr("read stdin", err)
		}
		snap, err = store.DecodeSnapshot(data)
		if err != nil {
			exitErr("parse snapshot", err)
		}
	case len(args) == 1:
		snap, err = store.ReadMirror(args[0])
		if err != nil {
			exitErr("read snapshot", err)
		}
	default:
		snap, err = store.ReadMirror(a.cfg.MirrorPath)
		if err != nil {
			exitErr("read mirror", err)
		}
	}

	imported, err := a.engine.Import(cmd.Context(), snap)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d,"skipped":%d}`+"\n", len(imported), len(snap.Entries)-len(imported))
}
