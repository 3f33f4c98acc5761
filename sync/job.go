package sync

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/candlesync/market"
)

// Job is one instrument/granularity synchronization pass.
type Job struct {
	Instrument  string
	Granularity market.Granularity
}

func (j Job) String() string {
	return fmt.Sprintf("%s/%s", j.Instrument, j.Granularity)
}

// Jobs builds the work list as the cartesian product of instruments and
// granularities.
func Jobs(instruments []string, granularities []market.Granularity) []Job {
	jobs := make([]Job, 0, len(instruments)*len(granularities))
	for _, inst := range instruments {
		for _, g := range granularities {
			jobs = append(jobs, Job{Instrument: inst, Granularity: g})
		}
	}
	return jobs
}

// Status is the terminal state of a job.
type Status int

const (
	// Succeeded means the full fetch finished and every candle was committed.
	Succeeded Status = iota
	// PartiallyFailed means the fetch gave up early but the candles gathered
	// before the failure were committed.
	PartiallyFailed
	// Failed means nothing usable was committed for the job.
	Failed
	// Canceled means the job was never attempted because an earlier job hit
	// a process-fatal error.
	Canceled
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case PartiallyFailed:
		return "partially failed"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is the outcome of one job.
type Result struct {
	Job     Job
	Written int
	Status  Status
	Err     error
}

// Summary aggregates every job's result for one process run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// OK reports whether every job succeeded. The process exit code hangs off
// this.
func (s Summary) OK() bool {
	for _, r := range s.Results {
		if r.Status != Succeeded {
			return false
		}
	}
	return true
}

// Counts tallies results per terminal status.
func (s Summary) Counts() (succeeded, partial, failed, canceled int) {
	for _, r := range s.Results {
		switch r.Status {
		case Succeeded:
			succeeded++
		case PartiallyFailed:
			partial++
		case Failed:
			failed++
		case Canceled:
			canceled++
		}
	}
	return
}

// Report writes the per-job outcome lines and the aggregate tally.
func (s Summary) Report(w io.Writer) {
	for _, r := range s.Results {
		switch r.Status {
		case Succeeded:
			fmt.Fprintf(w, "%s: %s (%d candles)\n", r.Job, r.Status, r.Written)
		case PartiallyFailed:
			fmt.Fprintf(w, "%s: %s (%d candles committed): %v\n", r.Job, r.Status, r.Written, r.Err)
		case Canceled:
			fmt.Fprintf(w, "%s: %s\n", r.Job, r.Status)
		default:
			fmt.Fprintf(w, "%s: %s: %v\n", r.Job, r.Status, r.Err)
		}
	}

	succeeded, partial, failed, canceled := s.Counts()
	fmt.Fprintf(w, "%d jobs: %d succeeded, %d partially failed, %d failed, %d canceled (%s)\n",
		len(s.Results), succeeded, partial, failed, canceled,
		s.Finished.Sub(s.Started).Round(time.Millisecond))
}
