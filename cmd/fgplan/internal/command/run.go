package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/cmd/fgplan/internal/view"
	"github.com/gogpu/framegraph/internal/graphfile"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/recording"
)

// RunOptions holds the options for the run command.
type RunOptions struct {
	Path    string
	Profile string
	DOT     string
	Metrics bool
}

// NewRunCommand returns the run command.
func NewRunCommand(cli *CLI) *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute frame graphs on a recording device and print the trace",
		Long: Highlight("fgplan run -f <path>") + "\n\n" +
			"Compile and execute frame graph descriptions on a recording device.\n" +
			"When targeting a directory, all .yaml and .yml files are run.\n\n" +
			"Examples:\n" +
			"  # Trace one graph on a device without async compute\n" +
			"  fgplan run -f deferred.yaml --profile single-queue\n\n" +
			"  # Write the compiled graph for Graphviz\n" +
			"  fgplan run -f deferred.yaml --dot deferred.dot\n",
		Args: MaxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunGraphs(cli, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "file", "f", "", "Path to a graph file or directory")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Recording device profile (default from config)")
	cmd.Flags().StringVar(&opts.DOT, "dot", "", "Write the compiled plan as Graphviz DOT to this file")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "Report pool metrics after the frame")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// RunGraphs runs every graph file under opts.Path and renders the traces.
func RunGraphs(cli *CLI, opts RunOptions) error {
	files, err := graphfile.CollectFiles(opts.Path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no YAML files found in %q", opts.Path)
	}
	if opts.DOT != "" && len(files) > 1 {
		return errors.New("--dot needs a single graph file")
	}
	if opts.Profile == "" {
		opts.Profile = cli.Config.Profile
	}

	var failed bool
	for _, path := range files {
		res, err := runFile(cli, path, opts)
		if err != nil {
			view.RenderValidate(cli.View, cli.Stream, view.ValidateResult{
				FileCount: 1,
				Errors:    []view.FileError{{File: path, Message: err.Error()}},
			})
			failed = true
			continue
		}
		view.RenderRun(cli.View, cli.Stream, res)
		if len(res.Violations) > 0 {
			failed = true
		}
	}
	if failed {
		return errors.New("")
	}
	return nil
}

func runFile(cli *CLI, path string, opts RunOptions) (res view.RunResult, err error) {
	f, err := graphfile.Load(path)
	if err != nil {
		return res, err
	}
	dev, err := recording.NewProfileDevice(opts.Profile)
	if err != nil {
		return res, err
	}

	var (
		poolOpts []pool.Option
		registry *prometheus.Registry
	)
	if opts.Metrics {
		m := pool.NewMetrics()
		registry = prometheus.NewRegistry()
		m.MustRegister(registry)
		poolOpts = append(poolOpts, pool.WithMetrics(m))
	}
	pools := pool.New(dev, cli.Config.PoolConfig(), poolOpts...)

	label := f.Label
	if label == "" {
		label = filepath.Base(path)
	}
	g := framegraph.New(dev, pools,
		framegraph.WithLabel(label),
		framegraph.WithAsyncCompute(cli.Config.Async()),
	)
	gr, err := f.Build(g, dev, pools)
	if err != nil {
		g.Release()
		pools.Invalidate()
		return res, err
	}
	released := false
	release := func() {
		if !released {
			released = true
			g.Release()
			pools.Forfeit()
		}
	}
	defer func() {
		release()
		pools.Invalidate()
		gr.Destroy()
	}()

	info := gr.ExecuteInfo()
	info.Fence = dev.NewFence(label)
	info.FenceValue = 1
	if err := g.Execute(info); err != nil {
		return res, err
	}
	plan, err := g.Compile()
	if err != nil {
		return res, err
	}
	if opts.DOT != "" {
		if err := writeDOT(plan, opts.DOT); err != nil {
			return res, err
		}
	}

	res = traceResult(path, opts.Profile, plan, dev)
	if registry != nil {
		release()
		if res.Metrics, err = gatherMetrics(registry); err != nil {
			return res, err
		}
	}
	return res, nil
}

func writeDOT(plan *framegraph.Plan, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := plan.WriteDOT(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func traceResult(path, profile string, plan *framegraph.Plan, dev *recording.Device) view.RunResult {
	res := view.RunResult{
		File:         path,
		Label:        plan.Label,
		Profile:      profile,
		AsyncCompute: plan.AsyncCompute,
		Batches:      plan.Batches,
		Presents:     len(dev.Presents()),
		Violations:   dev.Violations(),
	}
	for i := range plan.Passes {
		pp := &plan.Passes[i]
		res.Passes = append(res.Passes, view.PassRow{
			Name:     pp.Name,
			Kind:     pp.Kind.String(),
			Queue:    pp.Queue.String(),
			Batch:    pp.Batch,
			Culled:   pp.Culled,
			Barriers: len(pp.Barriers) + len(pp.Handoff),
		})
	}
	for _, sub := range dev.Submissions() {
		row := view.SubmissionRow{
			Queue:   sub.Queue.String(),
			Waits:   len(sub.Wait),
			Signals: len(sub.Signal),
			Fence:   sub.Fence != nil,
		}
		for _, cb := range sub.CommandBuffers {
			for _, c := range cb.Commands {
				row.Commands = append(row.Commands, recording.Describe(c))
			}
		}
		res.Submissions = append(res.Submissions, row)
	}
	return res
}

// gatherMetrics flattens the pool counters and gauges by their pool label.
func gatherMetrics(g prometheus.Gatherer) ([]view.MetricRow, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var rows []view.MetricRow
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			row := view.MetricRow{Name: mf.GetName()}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "pool" {
					row.Pool = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				row.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				row.Value = m.GetGauge().GetValue()
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
