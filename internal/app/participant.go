// Package app contains the top-level orchestration for the participant:
// binding the endpoint pair, wiring the session machine, and running the
// dispatch loop until cancellation or a fatal transport error.
package app

import (
	"context"
	"net/netip"
	"time"

	"github.com/pion/randutil"

	"github.com/corvana/applemidi/internal/config"
	"github.com/corvana/applemidi/internal/session"
	"github.com/corvana/applemidi/internal/transport"
	"github.com/corvana/applemidi/internal/util"
)

// tickInterval keeps feedback and timeout checks running while no traffic
// arrives.
const tickInterval = 100 * time.Millisecond

// Participant owns the two UDP endpoints and the session machine, and runs
// the single goroutine that mutates session state.
type Participant struct {
	control *transport.Endpoint
	data    *transport.Endpoint
	machine *session.Machine
	now     func() uint64
}

// endpointConn adapts the endpoint pair to the session.Conn capability.
type endpointConn struct {
	control *transport.Endpoint
	data    *transport.Endpoint
}

func (c *endpointConn) SendControl(data []byte, to netip.AddrPort) error {
	return c.control.SendTo(data, to)
}

func (c *endpointConn) SendMIDI(data []byte, to netip.AddrPort) error {
	return c.data.SendTo(data, to)
}

// NewParticipant binds the control and data ports and assembles the session
// machine. Bind failures are returned to the caller; nothing runs yet.
func NewParticipant(cfg *config.Config, sink session.Sink) (*Participant, error) {
	control, err := transport.Listen(cfg.ControlPort)
	if err != nil {
		return nil, err
	}

	data, err := transport.Listen(cfg.MIDIPort())
	if err != nil {
		control.Close()
		return nil, err
	}

	conn := &endpointConn{control: control, data: data}
	machine := session.NewMachine(conn, sink, randutil.NewMathRandomGenerator(), cfg.Name)

	return &Participant{
		control: control,
		data:    data,
		machine: machine,
		now:     newClock(),
	}, nil
}

// newClock returns a monotonic counter in 100 µs units, anchored near zero
// at participant creation.
func newClock() func() uint64 {
	start := time.Now()
	return func() uint64 {
		return uint64(time.Since(start) / (100 * time.Microsecond))
	}
}

// Run drives the participant until ctx is cancelled (returns nil) or a
// socket fails fatally (returns the error). Each iteration handles at most
// one datagram per endpoint, then applies the time-driven feedback and
// timeout logic against a timestamp captured after the drain.
func (p *Participant) Run(ctx context.Context) error {
	defer p.control.Close()
	defer p.data.Close()

	p.control.Start(ctx)
	p.data.Start(ctx)

	util.LogNotice("listening for session invitations on ports %d/%d",
		p.control.LocalPort(), p.data.LocalPort())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-p.control.Fatal():
			util.LogError("control socket receive error: %v", err)
			return err

		case err := <-p.data.Fatal():
			util.LogError("MIDI socket receive error: %v", err)
			return err

		case d := <-p.control.Inbox():
			now := p.now()
			p.machine.HandleControl(d.Data, d.From, now)
			p.machine.Advance(now)

		case d := <-p.data.Inbox():
			now := p.now()
			// A control datagram already waiting is handled first, so
			// control traffic precedes data traffic within an iteration.
			select {
			case c := <-p.control.Inbox():
				p.machine.HandleControl(c.Data, c.From, now)
			default:
			}
			p.machine.HandleMIDI(d.Data, d.From, now)
			p.machine.Advance(now)

		case <-ticker.C:
			p.machine.Advance(p.now())
		}
	}
}

// State exposes the machine's lifecycle state, for status display.
func (p *Participant) State() session.State {
	return p.machine.State()
}
