package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/geny-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Store a memory",
		Long:  "Store a memory. Text can be a positional arg or piped via stdin.",
		Run:   runIngest,
	}

	cmd.Flags().StringToStringP("meta", "m", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().String("meta-json", "", "Metadata as a JSON object of scalar values")
	cmd.Flags().Bool("flush", true, "Rewrite the mirror after storing")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	meta, _ := cmd.Flags().GetStringToString("meta")
	metaJSON, _ := cmd.Flags().GetString("meta-json")
	flush, _ := cmd.Flags().GetBool("flush")

	text, err := readText(cmd, args)
	if err != nil {
		exitErr("read stdin", err)
	}

	metadata := map[string]any{}
	if metaJSON != "" {
		m, err := model.DecodeMetadata([]byte(metaJSON))
		if err != nil {
			exitErr("ingest", fmt.Errorf("%w: --meta-json: %v", model.ErrInvalidInput, err))
		}
		if m != nil {
			metadata = m
		}
	}
	for k, v := range meta {
		metadata[k] = v
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	entry, err := a.engine.Ingest(cmd.Context(), text, metadata)
	if err != nil {
		exitErr("ingest", err)
	}

	if flush {
		if _, err := a.engine.Flush(cmd.Context()); err != nil {
			a.log.Warn().Err(err).Int64("entry_id", entry.ID).Msg("entry stored, mirror flush deferred")
		}
	}

	b, _ := json.Marshal(entry)
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

// readText returns the joined args, or stdin when no args are given and
// stdin is not a terminal.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
