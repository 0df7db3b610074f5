package actor

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// HookPosPortSend marks a token leaving a port.
var HookPosPortSend = &hooking.HookPos{Name: "Port Send"}

// Direction tells input ports from output ports.
type Direction int

// Port directions.
const (
	Input Direction = iota
	Output
)

// ReceiverHint tells the director which kind of receiver an input port wants.
// Directors may ignore the hint when their semantics require a specific
// receiver.
type ReceiverHint int

// Receiver hints.
const (
	HintFIFO ReceiverHint = iota
	HintMailbox
	HintTaggedMailbox
)

type link struct {
	dst  *Port
	recv receiver.Receiver
	dir  Director
}

// A Port is an actor's connection point.
//
// An input port owns one receiver per incoming connection; the index of the
// receiver is the channel number. An output port holds one link per outgoing
// connection. Ports of composite actors have both sides: the input port of a
// composite receives from the outside and links to the inside, and its
// output port receives from the inside and links to the outside.
type Port struct {
	hooking.HookableBase

	name      string
	owner     *Base
	direction Direction

	hint             ReceiverHint
	capacity         int
	relativeDeadline timing.Time

	receivers []receiver.Receiver
	links     []link
}

// Name returns the local name of the port.
func (p *Port) Name() string {
	return p.name
}

// FullName returns the owner's full name joined with the port name.
func (p *Port) FullName() string {
	return p.owner.FullName() + "." + p.name
}

// Owner returns the actor the port belongs to.
func (p *Port) Owner() Actor {
	return p.owner.self
}

// IsInput reports whether p is an input port.
func (p *Port) IsInput() bool {
	return p.direction == Input
}

// IsOutput reports whether p is an output port.
func (p *Port) IsOutput() bool {
	return p.direction == Output
}

// UseMailbox makes the port keep only the latest token on each channel.
func (p *Port) UseMailbox() *Port {
	p.hint = HintMailbox
	return p
}

// UseTaggedMailbox makes the port hold the latest token together with its
// tag and deadline.
func (p *Port) UseTaggedMailbox() *Port {
	p.hint = HintTaggedMailbox
	return p
}

// WithCapacity bounds the FIFO receivers of the port. Zero is unbounded.
func (p *Port) WithCapacity(n int) *Port {
	if n < 0 {
		panic("port capacity cannot be negative")
	}

	p.capacity = n

	return p
}

// WithRelativeDeadline sets the deadline, relative to the event time, of
// tokens delivered to this port.
func (p *Port) WithRelativeDeadline(d timing.Time) *Port {
	p.relativeDeadline = d
	return p
}

// Hint returns the receiver hint.
func (p *Port) Hint() ReceiverHint {
	return p.hint
}

// Capacity returns the receiver bound, zero meaning unbounded.
func (p *Port) Capacity() int {
	return p.capacity
}

// RelativeDeadline returns the relative deadline, or timing.Infinity.
func (p *Port) RelativeDeadline() timing.Time {
	return p.relativeDeadline
}

// Width returns the number of channels: receivers for an input port, links
// for an output port.
func (p *Port) Width() int {
	if p.IsInput() {
		return len(p.receivers)
	}

	return len(p.links)
}

// Receivers returns the receivers behind the port.
func (p *Port) Receivers() []receiver.Receiver {
	return p.receivers
}

// NumLinks returns the number of outgoing links.
func (p *Port) NumLinks() int {
	return len(p.links)
}

// LinkedPorts returns the destination of every outgoing link.
func (p *Port) LinkedPorts() []*Port {
	ports := make([]*Port, len(p.links))
	for i, l := range p.links {
		ports[i] = l.dst
	}

	return ports
}

// LinkReceivers returns, for an output port, the receiver at the far end of
// each link, in channel order.
func (p *Port) LinkReceivers() []receiver.Receiver {
	recvs := make([]receiver.Receiver, len(p.links))
	for i, l := range p.links {
		recvs[i] = l.recv
	}

	return recvs
}

// HasToken reports whether channel ch has a token to read.
func (p *Port) HasToken(ch int) bool {
	if ch < 0 || ch >= len(p.receivers) {
		return false
	}

	return p.receivers[ch].HasToken()
}

// HasAnyToken reports whether any channel has a token.
func (p *Port) HasAnyToken() bool {
	for _, r := range p.receivers {
		if r.HasToken() {
			return true
		}
	}

	return false
}

// Get reads a token from channel ch.
func (p *Port) Get(ch int) (token.Token, error) {
	if ch < 0 || ch >= len(p.receivers) {
		return token.Token{}, &NoTokenError{
			Port:    p.FullName(),
			Channel: ch,
			Err:     receiver.ErrNoToken,
		}
	}

	t, err := p.receivers[ch].Get()
	if err != nil {
		return token.Token{}, &NoTokenError{
			Port:    p.FullName(),
			Channel: ch,
			Err:     err,
		}
	}

	return t, nil
}

// Send sends tok over the ch-th link.
func (p *Port) Send(ch int, tok token.Token) error {
	if ch < 0 || ch >= len(p.links) {
		return fmt.Errorf("port %s has no channel %d", p.FullName(), ch)
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(hooking.HookCtx{
			Domain: p,
			Pos:    HookPosPortSend,
			Item:   tok,
			Detail: ch,
		})
	}

	l := p.links[ch]

	err := l.dir.Deliver(l.recv, l.dst, tok)
	if errors.Is(err, receiver.ErrNoRoom) {
		return &NoRoomError{Port: l.dst.FullName(), Channel: ch, Err: err}
	}

	return err
}

// Broadcast sends tok over every link.
func (p *Port) Broadcast(tok token.Token) error {
	for ch := range p.links {
		if err := p.Send(ch, tok); err != nil {
			return err
		}
	}

	return nil
}

// ClearReceivers empties every receiver behind the port.
func (p *Port) ClearReceivers() {
	for _, r := range p.receivers {
		r.Clear()
	}
}

func (p *Port) addLink(dst *Port, recv receiver.Receiver, dir Director) {
	p.links = append(p.links, link{dst: dst, recv: recv, dir: dir})
}

func (p *Port) addReceiver(r receiver.Receiver) {
	p.receivers = append(p.receivers, r)
}

func (p *Port) unlinkOwner(owner *Base) {
	kept := p.links[:0]

	for _, l := range p.links {
		if l.dst.owner != owner {
			kept = append(kept, l)
		}
	}

	p.links = kept
}

func (p *Port) dropReceiver(r receiver.Receiver) {
	for i, existing := range p.receivers {
		if existing == r {
			p.receivers = append(p.receivers[:i], p.receivers[i+1:]...)
			return
		}
	}
}

// Drain moves every token waiting in r into send. Mailboxes are emptied after
// their value is taken so the same value is not moved twice.
func Drain(r receiver.Receiver, send func(token.Token) error) (bool, error) {
	moved := false

	for n := r.Size(); n > 0 && r.HasToken(); n-- {
		tok, err := r.Get()
		if err != nil {
			return moved, err
		}

		moved = true

		if err := send(tok); err != nil {
			return moved, err
		}
	}

	if r.HasToken() {
		switch r.(type) {
		case *receiver.Mailbox, *receiver.TaggedMailbox:
			r.Clear()
		}
	}

	return moved, nil
}
