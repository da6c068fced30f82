// Package session implements the AppleMIDI participant (responder) state
// machine: invitation handling across the paired control and data endpoints,
// clock-sync rounds, receiver feedback, and liveness timeouts.
//
// The machine performs no I/O of its own. It is driven with raw datagrams
// plus a timestamp, and talks to the outside world through the small Conn
// and Sink capabilities injected at construction, which makes it directly
// testable without sockets.
package session

import (
	"net/netip"

	"github.com/corvana/applemidi/internal/protocol"
	"github.com/corvana/applemidi/internal/util"
)

// State identifies the participant's position in the session lifecycle.
type State uint8

const (
	StateControlInvitation State = iota
	StateMIDIInvitation
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateControlInvitation:
		return "ControlInvitation"
	case StateMIDIInvitation:
		return "MIDIInvitation"
	case StateConnected:
		return "Connected"
	}
	return "Unknown"
}

// All timestamps and timeouts are in units of 100 microseconds.
const (
	ClockUnitsPerSecond = 10000

	// SyncTimeout bounds both the wait for the data-port invitation and the
	// silence between sync rounds in Connected.
	SyncTimeout = 60 * ClockUnitsPerSecond

	// FeedbackPeriod is the receiver-feedback cadence.
	FeedbackPeriod = 1 * ClockUnitsPerSecond
)

// Conn sends datagrams out of the two session endpoints. Implementations
// must not block; a transient failure is reported as an error and leaves the
// session state untouched.
type Conn interface {
	SendControl(data []byte, to netip.AddrPort) error
	SendMIDI(data []byte, to netip.AddrPort) error
}

// Sink receives the MIDI byte stream extracted from data frames. It is
// called from the participant's goroutine and must not block.
type Sink func(data []byte)

// RandomSource mints session identifiers. Quality only needs to avoid
// trivial collisions across restarts.
type RandomSource interface {
	Uint32() uint32
}

// Machine holds all per-session state. A single goroutine owns it; methods
// must not be called concurrently.
type Machine struct {
	conn Conn
	sink Sink
	rand RandomSource
	name string

	state State
	tag   uint32 // log prefix, hashed from the peer address

	peerControl netip.AddrPort
	peerMIDI    netip.AddrPort

	initiatorToken uint32
	initiatorSSRC  uint32
	localSSRC      uint32

	rxSequence           uint16
	lastFeedbackSequence uint16
	offsetEstimate       uint64
	lastSyncTime         uint64
	lastFeedbackTime     uint64
}

// NewMachine creates a Machine in the ControlInvitation state. The name is
// advertised in accepted invitations, truncated to the wire bound.
func NewMachine(conn Conn, sink Sink, rand RandomSource, name string) *Machine {
	return &Machine{
		conn:  conn,
		sink:  sink,
		rand:  rand,
		name:  name,
		state: StateControlInvitation,
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// LocalSSRC returns the participant's SSRC, zero while no session is active.
func (m *Machine) LocalSSRC() uint32 { return m.localSSRC }

// OffsetEstimate returns the clock offset computed by the last completed
// sync round.
func (m *Machine) OffsetEstimate() uint64 { return m.offsetEstimate }

// HandleControl processes one datagram received on the control endpoint.
func (m *Machine) HandleControl(data []byte, from netip.AddrPort, now uint64) {
	switch m.state {
	case StateControlInvitation:
		m.controlInvitation(data, from, now)
	case StateMIDIInvitation:
		util.LogDebug("[%08x] ignoring control frame while awaiting data-port invitation", m.tag)
	case StateConnected:
		m.connectedControl(data)
	}
}

// HandleMIDI processes one datagram received on the data endpoint.
func (m *Machine) HandleMIDI(data []byte, from netip.AddrPort, now uint64) {
	switch m.state {
	case StateControlInvitation:
		util.LogDebug("ignoring data frame before control invitation")
	case StateMIDIInvitation:
		m.midiInvitation(data, from, now)
	case StateConnected:
		m.connectedMIDI(data, now)
	}
}

// controlInvitation accepts a session invitation on the control endpoint and
// advances to MIDIInvitation. Anything other than a valid IN is ignored.
func (m *Machine) controlInvitation(data []byte, from netip.AddrPort, now uint64) {
	inv, err := protocol.DecodeInvitation(data)
	if err != nil {
		util.LogError("unexpected packet on control port: %v", err)
		return
	}
	if inv.Command != protocol.CmdInvitation {
		util.LogError("unexpected %s frame on control port", protocol.CommandName(inv.Command))
		return
	}

	m.initiatorToken = inv.Token
	m.initiatorSSRC = inv.SSRC
	m.localSSRC = m.rand.Uint32()
	m.peerControl = from
	m.tag = util.SessionTag(from)

	if err := m.conn.SendControl(m.acceptFrame(), from); err != nil {
		util.LogError("[%08x] couldn't accept control invitation: %v", m.tag, err)
		// A failed accept leaves no session fields behind.
		m.initiatorToken, m.initiatorSSRC, m.localSSRC = 0, 0, 0
		m.peerControl = netip.AddrPort{}
		m.tag = 0
		return
	}

	util.LogDebug("[%08x] accepted control invitation from %q", m.tag, inv.Name)
	m.lastSyncTime = now
	m.state = StateMIDIInvitation
}

// midiInvitation accepts the mirrored invitation on the data endpoint and
// enters Connected. A failed accept tears the session down.
func (m *Machine) midiInvitation(data []byte, from netip.AddrPort, now uint64) {
	inv, err := protocol.DecodeInvitation(data)
	if err != nil {
		util.LogError("[%08x] unexpected packet on data port: %v", m.tag, err)
		return
	}
	if inv.Command != protocol.CmdInvitation {
		util.LogError("[%08x] unexpected %s frame on data port", m.tag, protocol.CommandName(inv.Command))
		return
	}
	if from.Addr() != m.peerControl.Addr() {
		util.LogError("[%08x] data-port invitation from foreign peer %s", m.tag, from.Addr())
		return
	}

	m.peerMIDI = from

	if err := m.conn.SendMIDI(m.acceptFrame(), from); err != nil {
		util.LogError("[%08x] couldn't accept MIDI invitation: %v", m.tag, err)
		m.Reset()
		return
	}

	util.LogNotice("[%08x] connection to %q (%s) established", m.tag, inv.Name, from.Addr())
	util.Stats.AddSession()
	m.lastSyncTime = now
	m.state = StateConnected
}

// connectedControl watches the control endpoint for the initiator's BY.
// Everything else on the control port is ignored while connected.
func (m *Machine) connectedControl(data []byte) {
	bye, err := protocol.DecodeEndSession(data)
	if err != nil {
		util.LogDebug("[%08x] ignoring control frame: %v", m.tag, err)
		return
	}
	if bye.SSRC != m.initiatorSSRC {
		util.LogDebug("[%08x] ignoring end-session from foreign SSRC %08x", m.tag, bye.SSRC)
		return
	}

	util.LogNotice("[%08x] initiator ended session", m.tag)
	m.Reset()
}

// connectedMIDI dispatches a data-endpoint datagram: RTP-MIDI payloads go to
// the sink, sync frames to the sync engine.
func (m *Machine) connectedMIDI(data []byte, now uint64) {
	if pkt, err := protocol.DecodeMIDI(data); err == nil {
		m.rxSequence = pkt.Sequence
		util.Stats.AddMIDI(len(pkt.Data))
		m.sink(pkt.Data)
		return
	}

	if ck, err := protocol.DecodeSync(data); err == nil {
		m.handleSync(ck, now)
		return
	}

	if cmd, ok := protocol.Command(data); ok {
		util.LogError("[%08x] unexpected %s frame on data port", m.tag, protocol.CommandName(cmd))
		return
	}
	util.LogError("[%08x] unexpected packet on data port", m.tag)
}

// acceptFrame builds the OK response for the pending invitation.
func (m *Machine) acceptFrame() []byte {
	return protocol.EncodeInvitation(&protocol.Invitation{
		Command: protocol.CmdInvitationAccepted,
		Token:   m.initiatorToken,
		SSRC:    m.localSSRC,
		Name:    m.name,
	})
}

// Reset zeroes all per-session fields and returns to ControlInvitation,
// ready to accept a fresh invitation from any peer.
func (m *Machine) Reset() {
	m.state = StateControlInvitation
	m.tag = 0

	m.peerControl = netip.AddrPort{}
	m.peerMIDI = netip.AddrPort{}

	m.initiatorToken = 0
	m.initiatorSSRC = 0
	m.localSSRC = 0

	m.rxSequence = 0
	m.lastFeedbackSequence = 0
	m.offsetEstimate = 0
	m.lastSyncTime = 0
	m.lastFeedbackTime = 0

	util.Stats.AddReset()
}
