// Package protocol defines the AppleMIDI session-management frames and the
// RTP-MIDI data frame, together with their wire codecs (RFC 6295).
package protocol

// AppleMIDI control frames share a 4-byte preamble: the 0xFFFF signature
// followed by a two-letter ASCII command packed big-endian.
const (
	Signature uint16 = 0xFFFF
	Version   uint32 = 2
)

// Command codes.
const (
	CmdInvitation         uint16 = 0x494E // "IN"
	CmdInvitationAccepted uint16 = 0x4F4B // "OK"
	CmdInvitationRejected uint16 = 0x4E4F // "NO"
	CmdEndSession         uint16 = 0x4259 // "BY"
	CmdSync               uint16 = 0x434B // "CK"
	CmdReceiverFeedback   uint16 = 0x5253 // "RS"
)

// Frame sizes.
const (
	invitationHeaderSize = 16  // preamble + version + token + SSRC, name follows
	MaxNameSize          = 256 // bounded name buffer, including the NUL
	endSessionSize       = 16
	syncSize             = 36
	feedbackSize         = 12
)

// Invitation is an IN, OK or NO session-management frame. The same layout is
// shared by all three; Command tells them apart.
type Invitation struct {
	Command uint16
	Token   uint32 // initiator token, echoed verbatim in responses
	SSRC    uint32
	Name    string
}

// EndSession is a BY frame. It carries the invitation layout without a name.
type EndSession struct {
	Token uint32
	SSRC  uint32
}

// Sync is a CK clock-synchronization frame. Count selects which of the three
// timestamps are meaningful; timestamps are in the sender's 100 µs clock.
type Sync struct {
	SSRC       uint32
	Count      uint8
	Timestamps [3]uint64
}

// ReceiverFeedback is an RS frame acknowledging the highest RTP sequence
// observed. The high 16 bits of Sequence carry the sequence number.
type ReceiverFeedback struct {
	SSRC     uint32
	Sequence uint32
}
