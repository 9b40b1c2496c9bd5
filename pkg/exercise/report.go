package exercise

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ctfer-io/lfs-station/pkg/fs"
)

// Step is the outcome of a single scripted operation.
type Step struct {
	Name      string        `json:"name"`
	Partition string        `json:"partition"`
	Path      string        `json:"path,omitempty"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`

	// Content is set by read steps.
	Content string `json:"content,omitempty"`
	// Entries is set by list steps.
	Entries []fs.Entry `json:"entries,omitempty"`
}

// Report gathers the outcome of an exercise run, in execution order.
type Report struct {
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Steps     []*Step         `json:"steps"`
	Benchmark *fs.BenchResult `json:"benchmark,omitempty"`

	// Aborted is set when a partition could not be mounted, as nothing can
	// run without it.
	Aborted bool `json:"aborted"`
}

// Failed returns the steps that did not succeed.
func (r *Report) Failed() []*Step {
	var failed []*Step
	for _, s := range r.Steps {
		if !s.OK {
			failed = append(failed, s)
		}
	}
	return failed
}

// Step returns the first step with the given name and path, or nil.
func (r *Report) Step(name, path string) *Step {
	for _, s := range r.Steps {
		if s.Name == name && s.Path == path {
			return s
		}
	}
	return nil
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
