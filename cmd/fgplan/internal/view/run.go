package view

import (
	"encoding/json"
	"strings"
)

// RunResult is the trace of one graph executed on a recording device.
type RunResult struct {
	File         string          `json:"file"`
	Label        string          `json:"label"`
	Profile      string          `json:"profile"`
	AsyncCompute bool            `json:"async_compute"`
	Batches      int             `json:"batches"`
	Passes       []PassRow       `json:"passes"`
	Submissions  []SubmissionRow `json:"submissions"`
	Presents     int             `json:"presents"`
	Violations   []string        `json:"violations,omitempty"`
	Metrics      []MetricRow     `json:"metrics,omitempty"`
}

// PassRow describes one compiled pass.
type PassRow struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Queue    string `json:"queue"`
	Batch    int    `json:"batch"`
	Culled   bool   `json:"culled"`
	Barriers int    `json:"barriers"`
}

// SubmissionRow describes one queue submission and its commands.
type SubmissionRow struct {
	Queue    string   `json:"queue"`
	Waits    int      `json:"waits"`
	Signals  int      `json:"signals"`
	Fence    bool     `json:"fence"`
	Commands []string `json:"commands"`
}

// MetricRow is one pool metric sample.
type MetricRow struct {
	Name  string  `json:"name"`
	Pool  string  `json:"pool"`
	Value float64 `json:"value"`
}

// RenderRun writes r in the given format.
func RenderRun(vt ViewType, s *Stream, r RunResult) {
	if vt == ViewJSON {
		if data, err := json.Marshal(r); err == nil {
			s.Println(string(data))
		}
		return
	}

	async := "off"
	if r.AsyncCompute {
		async = "on"
	}
	s.Println(Highlight("%s", r.Label), muted.Sprintf("(%s, profile %s, async compute %s)", r.File, r.Profile, async))

	var live int
	for _, p := range r.Passes {
		if !p.Culled {
			live++
		}
	}
	s.Printf("%s, %s culled, %s\n", plural(live, "live pass"), plural(len(r.Passes)-live, "pass"), plural(r.Batches, "batch"))
	for _, p := range r.Passes {
		if p.Culled {
			s.Println(muted.Sprintf("  - %-20s %-8s culled", p.Name, p.Kind))
			continue
		}
		s.Printf("  %s %-20s %-8s b%d %-12s %s\n",
			highlight.Sprint("+"), p.Name, p.Kind, p.Batch, p.Queue, plural(p.Barriers, "barrier"))
	}

	for i, sub := range r.Submissions {
		var sync []string
		if sub.Waits > 0 {
			sync = append(sync, plural(sub.Waits, "wait"))
		}
		if sub.Signals > 0 {
			sync = append(sync, plural(sub.Signals, "signal"))
		}
		if sub.Fence {
			sync = append(sync, "fence")
		}
		s.Printf("%s %d on %s %s\n", Highlight("submit"), i, sub.Queue, muted.Sprint(strings.Join(sync, ", ")))
		for _, c := range sub.Commands {
			s.Println("   ", c)
		}
	}
	if r.Presents > 0 {
		s.Println(Highlight("present"), plural(r.Presents, "texture"))
	}

	for _, m := range r.Metrics {
		s.Printf("%s %-45s %-20s %g\n", muted.Sprint("metric"), m.Name, m.Pool, m.Value)
	}
	for _, v := range r.Violations {
		s.Println(failure.Sprint("Violation!"), v)
	}
}
