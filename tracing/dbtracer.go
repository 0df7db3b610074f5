package tracing

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/datarecording"
)

// Tables written by DBTracer.
const (
	FiringTable     = "trace_firings"
	MissTable       = "trace_deadline_misses"
	ModeChangeTable = "trace_mode_transitions"
)

// FiringEntry is a row of the firing table.
type FiringEntry struct {
	RunID     string
	Director  string
	Actor     string
	Time      float64
	Microstep int
	Events    int
}

// MissEntry is a row of the deadline miss table.
type MissEntry struct {
	RunID     string
	Actor     string
	Time      float64
	Microstep int
	Deadline  float64
	Lateness  float64
}

// ModeChangeEntry is a row of the mode transition table.
type ModeChangeEntry struct {
	RunID      string
	Model      string
	Transition string
	FromMode   string
	ToMode     string
	Reset      bool
	Time       float64
	Microstep  int
}

// DBTracer writes trace records into a data recorder.
type DBTracer struct {
	lock    sync.Mutex
	runID   string
	backend datarecording.DataRecorder
	logger  logrus.FieldLogger
	failed  int
}

// NewDBTracer creates the trace tables in backend. Rows carry runID so that
// several runs can share one recording.
func NewDBTracer(
	backend datarecording.DataRecorder,
	runID string,
	logger logrus.FieldLogger,
) (*DBTracer, error) {
	tables := map[string]any{
		FiringTable:     FiringEntry{},
		MissTable:       MissEntry{},
		ModeChangeTable: ModeChangeEntry{},
	}

	for name, sample := range tables {
		if err := backend.CreateTable(name, sample); err != nil {
			return nil, err
		}
	}

	return &DBTracer{
		runID:   runID,
		backend: backend,
		logger:  logger,
	}, nil
}

// Failed returns how many records could not be written.
func (t *DBTracer) Failed() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.failed
}

// Fired records a firing.
func (t *DBTracer) Fired(f Firing) {
	t.insert(FiringTable, FiringEntry{
		RunID:     t.runID,
		Director:  f.Director,
		Actor:     f.Actor,
		Time:      f.Tag.Time.Seconds(),
		Microstep: f.Tag.Microstep,
		Events:    f.Events,
	})
}

// DeadlineMissed records a miss.
func (t *DBTracer) DeadlineMissed(m Miss) {
	t.insert(MissTable, MissEntry{
		RunID:     t.runID,
		Actor:     m.Actor,
		Time:      m.Tag.Time.Seconds(),
		Microstep: m.Tag.Microstep,
		Deadline:  m.Deadline.Seconds(),
		Lateness:  m.Lateness.Seconds(),
	})
}

// ModeChanged records a transition.
func (t *DBTracer) ModeChanged(c ModeChange) {
	t.insert(ModeChangeTable, ModeChangeEntry{
		RunID:      t.runID,
		Model:      c.Model,
		Transition: c.Transition,
		FromMode:   c.From,
		ToMode:     c.To,
		Reset:      c.Reset,
		Time:       c.Tag.Time.Seconds(),
		Microstep:  c.Tag.Microstep,
	})
}

func (t *DBTracer) insert(table string, entry any) {
	if err := t.backend.InsertData(table, entry); err != nil {
		t.lock.Lock()
		t.failed++
		t.lock.Unlock()

		t.logger.WithField("table", table).WithError(err).
			Warn("trace record dropped")
	}
}

// Flush writes buffered records.
func (t *DBTracer) Flush() error {
	return t.backend.Flush()
}
