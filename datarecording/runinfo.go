package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfoTable is the table RunInfo writes to.
const RunInfoTable = "run_info"

// RunInfoEntry is one property of a run.
type RunInfoEntry struct {
	RunID    string
	Property string
	Value    string
}

// RunInfo records how a run was started and when it ended.
type RunInfo struct {
	runID    string
	recorder DataRecorder
	now      func() time.Time
}

// NewRunInfo creates the run_info table in recorder.
func NewRunInfo(recorder DataRecorder, runID string) (*RunInfo, error) {
	if err := recorder.CreateTable(RunInfoTable, RunInfoEntry{}); err != nil {
		return nil, err
	}

	return &RunInfo{
		runID:    runID,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// Set records one property.
func (r *RunInfo) Set(property, value string) error {
	return r.recorder.InsertData(RunInfoTable, RunInfoEntry{
		RunID:    r.runID,
		Property: property,
		Value:    value,
	})
}

// Start records the start time, the command line and the working
// directory.
func (r *RunInfo) Start() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	props := [][2]string{
		{"Start Time", r.timestamp()},
		{"Command", strings.Join(os.Args, " ")},
		{"Working Directory", wd},
	}

	for _, p := range props {
		if err := r.Set(p[0], p[1]); err != nil {
			return err
		}
	}

	return nil
}

// End records the end time and flushes the recorder.
func (r *RunInfo) End() error {
	if err := r.Set("End Time", r.timestamp()); err != nil {
		return err
	}

	return r.recorder.Flush()
}

func (r *RunInfo) timestamp() string {
	return r.now().Format("2006-01-02 15:04:05.000000000")
}
