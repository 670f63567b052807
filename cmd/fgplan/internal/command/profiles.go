package command

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph/recording"
)

// NewProfilesCommand returns the profiles command.
func NewProfilesCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List recording device profiles",
		Args:  MaxArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range recording.Profiles() {
				if name == cli.Config.Profile {
					cli.Println(Highlight("* %s", name))
					continue
				}
				cli.Println("  " + name)
			}
		},
	}
}
