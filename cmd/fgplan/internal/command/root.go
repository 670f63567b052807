package command

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/cmd/fgplan/internal/view"
)

// Version is reported by --version.
var Version = "dev"

// NewRootCommand returns the fgplan root command. Global flags are applied
// to cli before any subcommand runs.
func NewRootCommand(cli *CLI) *cobra.Command {
	var (
		configPath string
		output     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use: "fgplan",
		Short: Highlight("fgplan [global options] <subcommand> [args]") + "\n" +
			"Plan and trace frame graphs described in YAML",
		Long: Highlight("Usage: fgplan [global options] <subcommand> [args]") + "\n\n" +
			"fgplan compiles frame graph descriptions and runs them on a recording\n" +
			"device. It reports which passes survive culling, the queue and batch of\n" +
			"every pass, the barriers between them and the resulting submissions.\n",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			vt, err := view.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cli.View = vt
			cli.Stream = view.NewStream(cmd.OutOrStdout())

			if configPath != "" {
				if cli.Config, err = LoadConfig(configPath); err != nil {
					return err
				}
			}
			level, err := view.ParseLevel(cli.Config.LogLevel)
			if err != nil {
				return err
			}
			if debug {
				cli.Config.LogLevel = "debug"
				level, _ = view.ParseLevel("debug")
			}
			framegraph.SetLogger(view.NewLogger(vt, cmd.ErrOrStderr(), level))
			return nil
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format. One of: (human | json)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Set log level to debug")
	return cmd
}

// AddCommands registers all subcommands to the root command.
func AddCommands(root *cobra.Command, cli *CLI) {
	root.AddCommand(
		NewRunCommand(cli),
		NewValidateCommand(cli),
		NewProfilesCommand(cli),
	)
}

func setUsageTemplate(root *cobra.Command) {
	cobra.AddTemplateFunc("StyleHeading", view.Highlight)
	usage := strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Examples:`, `{{StyleHeading "Examples:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(root.UsageTemplate())
	root.SetUsageTemplate(usage)
}

// Execute runs fgplan with the process arguments and exits.
func Execute() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
	}

	cli := NewCLI(os.Stdout)
	root := NewRootCommand(cli)
	setUsageTemplate(root)
	root.SetVersionTemplate("{{.Version}}\n")
	AddCommands(root, cli)

	if err := root.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			cli.Println(color.RGB(229, 50, 50).Sprint("Error:"), msg)
		}
		os.Exit(1)
	}
}
