package realtime

import (
	"errors"
	"sync"

	"github.com/sarchlab/tempora/sim/token"
)

// ErrLinkClosed is returned by a link that will never deliver again.
var ErrLinkClosed = errors.New("link closed")

// A Link delivers packets from outside the model. Poll never blocks: it
// reports false when nothing is waiting.
type Link interface {
	Poll() (token.Token, bool, error)
}

// ChannelLink is a Link fed through a Go channel.
type ChannelLink struct {
	packets   chan token.Token
	closeOnce sync.Once
}

// NewChannelLink creates a link that buffers up to capacity packets.
func NewChannelLink(capacity int) *ChannelLink {
	return &ChannelLink{packets: make(chan token.Token, capacity)}
}

// Send queues a packet. It blocks while the buffer is full.
func (l *ChannelLink) Send(packet token.Token) {
	l.packets <- packet
}

// Close tells the receiving side that no more packets will come. Packets
// already sent are still delivered.
func (l *ChannelLink) Close() {
	l.closeOnce.Do(func() { close(l.packets) })
}

// Poll takes the next packet if there is one.
func (l *ChannelLink) Poll() (token.Token, bool, error) {
	select {
	case p, ok := <-l.packets:
		if !ok {
			return token.Token{}, false, ErrLinkClosed
		}

		return p, true, nil
	default:
		return token.Token{}, false, nil
	}
}
