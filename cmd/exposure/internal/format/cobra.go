package format

import (
	"os"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// FromCommand builds a Formatter on cmd's writers from the inherited
// --output, --quiet and --no-color flags. A non-empty NO_COLOR variable also
// turns color off.
func FromCommand(cmd *cobra.Command) Formatter {
	mode := ModeTable
	if v, ok := flagValue(cmd, "output"); ok {
		mode = ParseMode(v)
	}
	color := !boolFlag(cmd, "no-color") && os.Getenv("NO_COLOR") == ""
	return New(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode, boolFlag(cmd, "quiet"), color)
}

func flagValue(cmd *cobra.Command, name string) (string, bool) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return "", false
	}
	return f.Value.String(), true
}

func boolFlag(cmd *cobra.Command, name string) bool {
	v, ok := flagValue(cmd, name)
	return ok && cast.ToBool(v)
}
