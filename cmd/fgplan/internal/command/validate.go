package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/cmd/fgplan/internal/view"
	"github.com/gogpu/framegraph/internal/graphfile"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/recording"
)

// ValidateOptions holds the options for the validate command.
type ValidateOptions struct {
	Path    string
	Profile string
}

// NewValidateCommand returns the validate command.
func NewValidateCommand(cli *CLI) *cobra.Command {
	var opts ValidateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate frame graph descriptions",
		Long: Highlight("fgplan validate -f <path>") + "\n\n" +
			"Validate frame graph descriptions by file or directory.\n\n" +
			"Each file is decoded, checked and compiled, which reports culled\n" +
			"references, multiple writers, reads before writes and cross-queue\n" +
			"hazards without executing anything.\n",
		Args: MaxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ValidateGraphs(cli, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "file", "f", "", "Path to a graph file or directory")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Recording device profile (default from config)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// ValidateGraphs validates every graph file under opts.Path.
func ValidateGraphs(cli *CLI, opts ValidateOptions) error {
	files, err := graphfile.CollectFiles(opts.Path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no YAML files found in %q", opts.Path)
	}
	if opts.Profile == "" {
		opts.Profile = cli.Config.Profile
	}

	result := view.ValidateResult{FileCount: len(files)}
	for _, path := range files {
		if err := compileFile(cli, path, opts.Profile); err != nil {
			result.Errors = append(result.Errors, view.FileError{File: path, Message: err.Error()})
		}
	}
	view.RenderValidate(cli.View, cli.Stream, result)
	if result.HasErrors() {
		return errors.New("")
	}
	return nil
}

func compileFile(cli *CLI, path, profile string) error {
	f, err := graphfile.Load(path)
	if err != nil {
		return err
	}
	dev, err := recording.NewProfileDevice(profile)
	if err != nil {
		return err
	}
	pools := pool.New(dev, cli.Config.PoolConfig())
	defer pools.Invalidate()

	g := framegraph.New(dev, pools, framegraph.WithAsyncCompute(cli.Config.Async()))
	defer g.Release()
	gr, err := f.Build(g, dev, pools)
	if err != nil {
		return err
	}
	defer gr.Destroy()

	_, err = g.Compile()
	return err
}
