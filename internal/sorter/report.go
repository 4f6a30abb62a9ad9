package sorter

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Result is the outcome of one file.
type Result struct {
	Source      string
	Destination string
	Bucket      string
	Bytes       int64
	Renamed     bool
	Err         error
}

// Failure is a file that could not be placed.
type Failure struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Err    error  `json:"-"`
}

// MarshalJSON renders the error as a string.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Path   string `json:"path"`
		Bucket string `json:"bucket"`
		Error  string `json:"error"`
	}{f.Path, f.Bucket, msg})
}

// Report summarizes a finished (or cancelled) run.
type Report struct {
	RunID       string         `json:"run_id"`
	SourceRoot  string         `json:"source"`
	DestRoot    string         `json:"destination"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Discovered  int            `json:"discovered"`
	Copied      int            `json:"copied"`
	Failed      int            `json:"failed"`
	Renamed     int            `json:"renamed"`
	Bytes       int64          `json:"bytes"`
	WalkSkipped int            `json:"walk_skipped"`
	Buckets     map[string]int `json:"buckets"`
	Failures    []Failure      `json:"failures"`
	Cancelled   bool           `json:"cancelled"`
}

func newReport(runID, source, dest string, started time.Time) *Report {
	return &Report{
		RunID:      runID,
		SourceRoot: source,
		DestRoot:   dest,
		StartedAt:  started,
		Buckets:    make(map[string]int),
		Failures:   []Failure{},
	}
}

func (r *Report) add(res Result) {
	r.Discovered++
	if res.Err != nil {
		r.Failed++
		r.Failures = append(r.Failures, Failure{Path: res.Source, Bucket: res.Bucket, Err: res.Err})
		return
	}
	r.Copied++
	r.Bytes += res.Bytes
	r.Buckets[res.Bucket]++
	if res.Renamed {
		r.Renamed++
	}
}

func (r *Report) finish(now time.Time, walkSkipped int, cancelled bool) {
	r.FinishedAt = now
	r.WalkSkipped = walkSkipped
	r.Cancelled = cancelled
	slices.SortFunc(r.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Path, b.Path)
	})
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// OK reports whether every discovered file was copied and the run finished.
func (r *Report) OK() bool {
	return r.Failed == 0 && !r.Cancelled
}
