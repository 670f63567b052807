package command

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph/cmd/fgplan/internal/view"
)

// CLI is the state shared by every command.
type CLI struct {
	*view.Stream
	View   view.ViewType
	Config Config
}

// NewCLI returns a CLI writing human output to w with the default config.
func NewCLI(w io.Writer) *CLI {
	return &CLI{
		Stream: view.NewStream(w),
		View:   view.ViewHuman,
		Config: DefaultConfig(),
	}
}

// Highlight applies the accent color to the given format and arguments.
func Highlight(format string, a ...any) string {
	return view.Highlight(format, a...)
}

// MaxArgs returns an error if there are more than the max number of args.
func MaxArgs(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) <= number {
			return nil
		}
		return fmt.Errorf("expected at most %d arguments, got %d", number, len(args))
	}
}
