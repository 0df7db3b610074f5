package receiver

import (
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// Mailbox holds a single token. Put overwrites and Get does not consume, so
// the last value is held until replaced.
type Mailbox struct {
	value token.Token
	full  bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put replaces the held token.
func (m *Mailbox) Put(t token.Token) error {
	m.value = t
	m.full = true

	return nil
}

// Get returns the held token and keeps it.
func (m *Mailbox) Get() (token.Token, error) {
	if !m.full {
		return token.Token{}, ErrNoToken
	}

	return m.value, nil
}

// HasToken reports whether anything was ever put since the last Clear.
func (m *Mailbox) HasToken() bool {
	return m.full
}

// HasRoom is always true.
func (m *Mailbox) HasRoom() bool {
	return true
}

// Size is one if a token is held.
func (m *Mailbox) Size() int {
	if m.full {
		return 1
	}

	return 0
}

// Clear empties the mailbox.
func (m *Mailbox) Clear() {
	m.value = token.Token{}
	m.full = false
}

// TaggedMailbox is a mailbox for real-time devices. Besides the token it holds
// the tag the token belongs to, its absolute deadline and causal depth. It
// only reports a token while the director's current tag equals the stored
// tag.
type TaggedMailbox struct {
	Mailbox

	now      func() timing.Tag
	tag      timing.Tag
	deadline timing.Time
	depth    int
}

// NewTaggedMailbox creates a tagged mailbox that reads the director's current
// tag through now.
func NewTaggedMailbox(now func() timing.Tag) *TaggedMailbox {
	return &TaggedMailbox{now: now, deadline: timing.Infinity}
}

// Put stores t stamped with the current tag and no deadline.
func (m *TaggedMailbox) Put(t token.Token) error {
	m.PutTagged(t, m.now(), timing.Infinity, 0)
	return nil
}

// PutTagged stores t with its tag. The absolute deadline is the tag's time
// plus relativeDeadline.
func (m *TaggedMailbox) PutTagged(
	t token.Token,
	tag timing.Tag,
	relativeDeadline timing.Time,
	depth int,
) {
	_ = m.Mailbox.Put(t)
	m.tag = tag
	m.deadline = tag.Time.Add(relativeDeadline)
	m.depth = depth
}

// HasToken reports whether a token is held for the director's current tag.
func (m *TaggedMailbox) HasToken() bool {
	return m.full && m.tag.Compare(m.now()) == 0
}

// Get returns the token if it belongs to the current tag.
func (m *TaggedMailbox) Get() (token.Token, error) {
	if !m.HasToken() {
		return token.Token{}, ErrNoToken
	}

	return m.value, nil
}

// Tag returns the tag of the held token.
func (m *TaggedMailbox) Tag() timing.Tag {
	return m.tag
}

// Deadline returns the absolute deadline of the held token.
func (m *TaggedMailbox) Deadline() timing.Time {
	return m.deadline
}

// Depth returns the causal depth of the held token.
func (m *TaggedMailbox) Depth() int {
	return m.depth
}

// Clear empties the mailbox and forgets its tag.
func (m *TaggedMailbox) Clear() {
	m.Mailbox.Clear()
	m.tag = timing.Tag{}
	m.deadline = timing.Infinity
	m.depth = 0
}
