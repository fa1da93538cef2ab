package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/roach88/permstore/internal/cli.Version=...".
var Version = "dev"

type versionResult struct {
	Version string `json:"version"`
	Go      string `json:"go"`
}

func (r versionResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "permstore %s (%s)\n", r.Version, r.Go)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the permstore version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			return out.Success(versionResult{Version: Version, Go: runtime.Version()})
		},
	}
}
