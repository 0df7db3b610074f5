package lib

import (
	"sync"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// A RecordEntry is one token seen by a recorder.
type RecordEntry struct {
	Tag     timing.Tag
	Channel int
	Token   token.Token
}

// Recorder keeps every token it receives together with its tag. It is safe
// to read while the model runs.
type Recorder struct {
	*actor.Base

	Input *actor.Port

	limit     int
	listeners []func(RecordEntry)

	lock    sync.Mutex
	entries []RecordEntry
}

// NewRecorder creates a recorder. A positive limit makes it finish after
// that many tokens.
func NewRecorder(name string, limit int) *Recorder {
	r := &Recorder{Base: actor.NewBase(name), limit: limit}
	r.Input = r.AddInputPort("input")

	return r
}

// OnEntry registers a function called with every recorded entry.
func (r *Recorder) OnEntry(f func(RecordEntry)) {
	r.listeners = append(r.listeners, f)
}

// Entries returns a copy of what was recorded in this run.
func (r *Recorder) Entries() []RecordEntry {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]RecordEntry(nil), r.entries...)
}

// Tokens returns the recorded tokens in arrival order.
func (r *Recorder) Tokens() []token.Token {
	r.lock.Lock()
	defer r.lock.Unlock()

	toks := make([]token.Token, len(r.entries))
	for i, e := range r.entries {
		toks[i] = e.Token
	}

	return toks
}

// Initialize forgets the previous run.
func (r *Recorder) Initialize() error {
	r.lock.Lock()
	r.entries = nil
	r.lock.Unlock()

	return nil
}

// Fire records what is waiting.
func (r *Recorder) Fire() error {
	tag := r.Tag()

	for ch := 0; ch < r.Input.Width(); ch++ {
		for r.Input.HasToken(ch) {
			tok, err := r.Input.Get(ch)
			if err != nil {
				return err
			}

			r.record(RecordEntry{Tag: tag, Channel: ch, Token: tok})
		}
	}

	return nil
}

func (r *Recorder) record(e RecordEntry) {
	r.lock.Lock()
	r.entries = append(r.entries, e)
	r.lock.Unlock()

	for _, f := range r.listeners {
		f(e)
	}
}

// Postfire finishes the recorder once its limit is reached.
func (r *Recorder) Postfire() (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.entries) < r.limit, nil
}
