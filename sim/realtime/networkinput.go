package realtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// ErrMalformedPacket is returned when a packet is not a record with the
// expected fields.
var ErrMalformedPacket = errors.New("malformed packet")

// Packet fields.
const (
	FieldTimestamp        = "timestamp"
	FieldMicrostep        = "microstep"
	FieldPayload          = "payload"
	FieldRelativeDeadline = "relativeDeadline"
	FieldDepth            = "depth"
)

var (
	requiredFields = []string{FieldTimestamp, FieldMicrostep, FieldPayload}
	optionalFields = []string{FieldRelativeDeadline, FieldDepth}
)

// A Packet is a decoded network record.
type Packet struct {
	Tag              timing.Tag
	Payload          token.Token
	RelativeDeadline timing.Time
	Depth            int
}

// MakePacket encodes a packet as a record token, the way it travels on a
// link. A negative depth or an infinite relative deadline is left out.
func MakePacket(p Packet) token.Token {
	fields := map[string]token.Token{
		FieldTimestamp: token.NewDouble(p.Tag.Time.Seconds()),
		FieldMicrostep: token.NewInt(int64(p.Tag.Microstep)),
		FieldPayload:   p.Payload,
	}

	if !p.RelativeDeadline.IsInfinite() {
		fields[FieldRelativeDeadline] = token.NewDouble(p.RelativeDeadline.Seconds())
	}

	if p.Depth >= 0 {
		fields[FieldDepth] = token.NewInt(int64(p.Depth))
	}

	return token.NewRecord(fields)
}

// DecodePacket reads a record token. Times are snapped to the resolution.
func DecodePacket(rec token.Token, r timing.Resolution) (Packet, error) {
	if rec.Kind() != token.Record {
		return Packet{}, fmt.Errorf("%w: got a %s token", ErrMalformedPacket,
			rec.Kind())
	}

	if err := checkLabels(rec.Labels()); err != nil {
		return Packet{}, err
	}

	ts, err := field(rec, FieldTimestamp).Double()
	if err != nil {
		return Packet{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedPacket, err)
	}

	ms, err := field(rec, FieldMicrostep).Int()
	if err != nil || ms < 0 {
		return Packet{}, fmt.Errorf("%w: bad microstep", ErrMalformedPacket)
	}

	p := Packet{
		Tag: timing.Tag{
			Time:      r.FromSeconds(ts),
			Microstep: int(ms),
		},
		Payload:          field(rec, FieldPayload),
		RelativeDeadline: timing.Infinity,
	}

	if rd, err := rec.Get(FieldRelativeDeadline); err == nil {
		v, err := rd.Double()
		if err != nil || v < 0 {
			return Packet{}, fmt.Errorf("%w: bad relative deadline",
				ErrMalformedPacket)
		}

		p.RelativeDeadline = r.FromSeconds(v)
	}

	if d, err := rec.Get(FieldDepth); err == nil {
		v, err := d.Int()
		if err != nil {
			return Packet{}, fmt.Errorf("%w: bad depth", ErrMalformedPacket)
		}

		p.Depth = int(v)
	}

	return p, nil
}

func field(rec token.Token, label string) token.Token {
	tok, _ := rec.Get(label)
	return tok
}

func checkLabels(labels []string) error {
	seen := make(map[string]bool)

	for _, l := range labels {
		if !contains(requiredFields, l) && !contains(optionalFields, l) {
			return fmt.Errorf("%w: unexpected field %q", ErrMalformedPacket, l)
		}

		seen[l] = true
	}

	var missing []string

	for _, l := range requiredFields {
		if !seen[l] {
			missing = append(missing, l)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedPacket,
			strings.Join(missing, ", "))
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

// NetworkInput emits the payload of each packet it receives at the
// packet's tag. It polls its link every poll interval. After MaxWaitCount
// empty polls in a row, or when the link closes, the link is declared dead;
// the device then finishes once the packets it holds are emitted. Other
// actors are not affected.
type NetworkInput struct {
	*actor.Base

	Output *actor.Port

	link         Link
	pollInterval timing.Time
	maxWaitCount int
	logger       logrus.FieldLogger

	waits    int
	dead     bool
	nextPoll timing.Time
	held     []Packet
	emitted  int
}

// NetworkInputBuilder builds network input devices.
type NetworkInputBuilder struct {
	pollInterval timing.Time
	maxWaitCount int
	logger       logrus.FieldLogger
}

// MakeNetworkInputBuilder returns a builder that polls every 10ms and gives
// up after 100 empty polls.
func MakeNetworkInputBuilder() NetworkInputBuilder {
	return NetworkInputBuilder{
		pollInterval: timing.FromSeconds(0.01),
		maxWaitCount: 100,
		logger:       logrus.StandardLogger(),
	}
}

// WithPollInterval sets the model time between two polls.
func (b NetworkInputBuilder) WithPollInterval(d timing.Time) NetworkInputBuilder {
	b.pollInterval = d
	return b
}

// WithMaxWaitCount sets how many empty polls in a row kill the link. Zero
// means the link never dies of silence.
func (b NetworkInputBuilder) WithMaxWaitCount(n int) NetworkInputBuilder {
	b.maxWaitCount = n
	return b
}

// WithLogger sets the logger.
func (b NetworkInputBuilder) WithLogger(l logrus.FieldLogger) NetworkInputBuilder {
	b.logger = l
	return b
}

// Build creates the device reading from link.
func (b NetworkInputBuilder) Build(name string, link Link) *NetworkInput {
	n := &NetworkInput{
		Base:         actor.NewBase(name),
		link:         link,
		pollInterval: b.pollInterval,
		maxWaitCount: b.maxWaitCount,
		logger:       b.logger,
	}
	n.Output = n.AddOutputPort("output")

	return n
}

// LinkDead reports whether the device stopped polling.
func (n *NetworkInput) LinkDead() bool {
	return n.dead
}

// Emitted returns the number of payloads sent.
func (n *NetworkInput) Emitted() int {
	return n.emitted
}

// Initialize schedules the first poll at the start time.
func (n *NetworkInput) Initialize() error {
	if !n.pollInterval.After(timing.Zero) {
		return actor.NewConfigurationError(n.FullName(),
			"poll interval must be positive, got %s", n.pollInterval)
	}

	n.waits = 0
	n.dead = false
	n.held = nil
	n.emitted = 0
	n.nextPoll = n.ModelTime()

	_, err := n.FireAt(n.nextPoll)

	return err
}

// Fire emits the packets due now and polls the link if a poll is due.
func (n *NetworkInput) Fire() error {
	now := n.Tag()

	if err := n.emitDue(now); err != nil {
		return err
	}

	if n.dead || now.Time.Before(n.nextPoll) {
		return nil
	}

	return n.poll(now)
}

// emitDue sends the packets held for the current tag. A packet whose tag
// has passed lost its firing to the deadline gate and is discarded.
func (n *NetworkInput) emitDue(now timing.Tag) error {
	due := 0
	for due < len(n.held) && n.held[due].Tag.Compare(now) <= 0 {
		due++
	}

	for _, p := range n.held[:due] {
		if p.Tag.Before(now) {
			n.logger.WithFields(logrus.Fields{
				"actor": n.FullName(),
				"tag":   p.Tag,
			}).Warn("discarding a packet whose firing was dropped")

			continue
		}

		if err := n.Output.Broadcast(p.Payload); err != nil {
			return err
		}

		n.emitted++
	}

	n.held = n.held[due:]

	return nil
}

func (n *NetworkInput) poll(now timing.Tag) error {
	got := false

	for {
		rec, ok, err := n.link.Poll()
		if errors.Is(err, ErrLinkClosed) {
			n.declareDead("link closed")
			break
		}

		if err != nil {
			return err
		}

		if !ok {
			break
		}

		got = true

		if err := n.accept(rec, now); err != nil {
			return err
		}
	}

	if got {
		n.waits = 0
	} else if !n.dead {
		n.waits++
		if n.maxWaitCount > 0 && n.waits >= n.maxWaitCount {
			n.declareDead(fmt.Sprintf("no packet in %d polls", n.waits))
		}
	}

	if n.dead {
		return nil
	}

	n.nextPoll = now.Time.Add(n.pollInterval)
	_, err := n.FireAt(n.nextPoll)

	return err
}

// accept holds a packet and asks to be fired at its tag. The deadline
// counts from the packet's own timestamp. A packet stamped at or before the
// current tag is fired one microstep later, so it still passes the deadline
// gate.
func (n *NetworkInput) accept(rec token.Token, now timing.Tag) error {
	p, err := DecodePacket(rec, n.Model().Resolution())
	if err != nil {
		return err
	}

	req := actor.FireRequest{
		Actor:     n.Self(),
		Time:      p.Tag.Time,
		Microstep: p.Tag.Microstep,
		Depth:     p.Depth,
	}

	if !p.RelativeDeadline.IsInfinite() {
		req.Deadline = AbsoluteDeadline(p.Tag.Time, p.RelativeDeadline)
		req.HasDeadline = true
	}

	if p.Tag.Compare(now) <= 0 {
		if p.Tag.Before(now) {
			n.logger.WithFields(logrus.Fields{
				"actor": n.FullName(),
				"time":  p.Tag.Time,
				"now":   now.Time,
			}).Warn("packet stamped in the past, emitting it now")
		}

		req.Time = now.Time
		req.Microstep = 0
	}

	p.Tag, err = n.ExecutiveDirector().Schedule(req)
	if err != nil {
		return err
	}

	n.held = append(n.held, p)
	sort.SliceStable(n.held, func(i, j int) bool {
		if c := n.held[i].Tag.Compare(n.held[j].Tag); c != 0 {
			return c < 0
		}

		return n.held[i].Depth < n.held[j].Depth
	})

	return nil
}

func (n *NetworkInput) declareDead(why string) {
	n.dead = true

	n.logger.WithFields(logrus.Fields{
		"actor": n.FullName(),
		"held":  len(n.held),
	}).Warnf("link dead: %s", why)
}

// Postfire finishes the device once its link is dead and nothing is held.
func (n *NetworkInput) Postfire() (bool, error) {
	return !n.dead || len(n.held) > 0, nil
}
