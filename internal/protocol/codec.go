package protocol

import (
	"encoding/binary"
	"fmt"
)

// UnknownName is substituted when an invitation carries no usable name field.
const UnknownName = "<unknown>"

// commandNames maps the known command codes to their two-letter mnemonics.
var commandNames = map[uint16]string{
	CmdInvitation:         "IN",
	CmdInvitationAccepted: "OK",
	CmdInvitationRejected: "NO",
	CmdEndSession:         "BY",
	CmdSync:               "CK",
	CmdReceiverFeedback:   "RS",
}

// CommandName returns the mnemonic for a command code, or its hex form when
// the code is not a known command.
func CommandName(cmd uint16) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", cmd)
}

// Command peeks at the preamble of a control frame and returns its command
// code. The second return value is false when the buffer is too short or the
// signature does not match.
func Command(data []byte) (uint16, bool) {
	if len(data) < 4 {
		return 0, false
	}
	if binary.BigEndian.Uint16(data[0:2]) != Signature {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[2:4]), true
}

// DecodeInvitation deserializes an IN, OK or NO frame. The name field is
// optional on the wire; a missing or empty name decodes as UnknownName.
func DecodeInvitation(data []byte) (*Invitation, error) {
	if len(data) < invitationHeaderSize {
		return nil, fmt.Errorf("invitation too short: %d bytes (need at least %d)", len(data), invitationHeaderSize)
	}

	cmd, ok := Command(data)
	if !ok {
		return nil, fmt.Errorf("bad signature")
	}
	if cmd != CmdInvitation && cmd != CmdInvitationAccepted && cmd != CmdInvitationRejected {
		return nil, fmt.Errorf("not an invitation command: 0x%04X", cmd)
	}

	if v := binary.BigEndian.Uint32(data[4:8]); v != Version {
		return nil, fmt.Errorf("unsupported protocol version: %d", v)
	}

	inv := &Invitation{
		Command: cmd,
		Token:   binary.BigEndian.Uint32(data[8:12]),
		SSRC:    binary.BigEndian.Uint32(data[12:16]),
		Name:    decodeName(data[invitationHeaderSize:]),
	}
	return inv, nil
}

// DecodeEndSession deserializes a BY frame.
func DecodeEndSession(data []byte) (*EndSession, error) {
	if len(data) < endSessionSize {
		return nil, fmt.Errorf("end-session too short: %d bytes (need %d)", len(data), endSessionSize)
	}

	cmd, ok := Command(data)
	if !ok {
		return nil, fmt.Errorf("bad signature")
	}
	if cmd != CmdEndSession {
		return nil, fmt.Errorf("not an end-session command: 0x%04X", cmd)
	}

	if v := binary.BigEndian.Uint32(data[4:8]); v != Version {
		return nil, fmt.Errorf("unsupported protocol version: %d", v)
	}

	return &EndSession{
		Token: binary.BigEndian.Uint32(data[8:12]),
		SSRC:  binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// DecodeSync deserializes a CK frame. Sync frames are fixed-size; any other
// length is rejected.
func DecodeSync(data []byte) (*Sync, error) {
	if len(data) != syncSize {
		return nil, fmt.Errorf("sync frame is %d bytes (need exactly %d)", len(data), syncSize)
	}

	cmd, ok := Command(data)
	if !ok {
		return nil, fmt.Errorf("bad signature")
	}
	if cmd != CmdSync {
		return nil, fmt.Errorf("not a sync command: 0x%04X", cmd)
	}

	return &Sync{
		SSRC:  binary.BigEndian.Uint32(data[4:8]),
		Count: data[8],
		Timestamps: [3]uint64{
			binary.BigEndian.Uint64(data[12:20]),
			binary.BigEndian.Uint64(data[20:28]),
			binary.BigEndian.Uint64(data[28:36]),
		},
	}, nil
}

// DecodeReceiverFeedback deserializes an RS frame.
func DecodeReceiverFeedback(data []byte) (*ReceiverFeedback, error) {
	if len(data) != feedbackSize {
		return nil, fmt.Errorf("feedback frame is %d bytes (need exactly %d)", len(data), feedbackSize)
	}

	cmd, ok := Command(data)
	if !ok {
		return nil, fmt.Errorf("bad signature")
	}
	if cmd != CmdReceiverFeedback {
		return nil, fmt.Errorf("not a feedback command: 0x%04X", cmd)
	}

	return &ReceiverFeedback{
		SSRC:     binary.BigEndian.Uint32(data[4:8]),
		Sequence: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// EncodeInvitation serializes an IN, OK or NO frame. Only the populated
// prefix of the name buffer is emitted: 16-byte header, the name truncated
// to fit MaxNameSize, and a terminating NUL.
func EncodeInvitation(inv *Invitation) []byte {
	name := inv.Name
	if len(name) > MaxNameSize-1 {
		name = name[:MaxNameSize-1]
	}

	buf := make([]byte, invitationHeaderSize+len(name)+1)
	binary.BigEndian.PutUint16(buf[0:2], Signature)
	binary.BigEndian.PutUint16(buf[2:4], inv.Command)
	binary.BigEndian.PutUint32(buf[4:8], Version)
	binary.BigEndian.PutUint32(buf[8:12], inv.Token)
	binary.BigEndian.PutUint32(buf[12:16], inv.SSRC)
	copy(buf[invitationHeaderSize:], name)
	return buf
}

// EncodeEndSession serializes a BY frame.
func EncodeEndSession(bye *EndSession) []byte {
	buf := make([]byte, endSessionSize)
	binary.BigEndian.PutUint16(buf[0:2], Signature)
	binary.BigEndian.PutUint16(buf[2:4], CmdEndSession)
	binary.BigEndian.PutUint32(buf[4:8], Version)
	binary.BigEndian.PutUint32(buf[8:12], bye.Token)
	binary.BigEndian.PutUint32(buf[12:16], bye.SSRC)
	return buf
}

// EncodeSync serializes a CK frame.
func EncodeSync(s *Sync) []byte {
	buf := make([]byte, syncSize)
	binary.BigEndian.PutUint16(buf[0:2], Signature)
	binary.BigEndian.PutUint16(buf[2:4], CmdSync)
	binary.BigEndian.PutUint32(buf[4:8], s.SSRC)
	buf[8] = s.Count
	binary.BigEndian.PutUint64(buf[12:20], s.Timestamps[0])
	binary.BigEndian.PutUint64(buf[20:28], s.Timestamps[1])
	binary.BigEndian.PutUint64(buf[28:36], s.Timestamps[2])
	return buf
}

// EncodeReceiverFeedback serializes an RS frame.
func EncodeReceiverFeedback(f *ReceiverFeedback) []byte {
	buf := make([]byte, feedbackSize)
	binary.BigEndian.PutUint16(buf[0:2], Signature)
	binary.BigEndian.PutUint16(buf[2:4], CmdReceiverFeedback)
	binary.BigEndian.PutUint32(buf[4:8], f.SSRC)
	binary.BigEndian.PutUint32(buf[8:12], f.Sequence)
	return buf
}

// decodeName extracts the NUL-terminated UTF-8 name that follows the
// invitation header. Truncated or absent names fall back to UnknownName.
func decodeName(data []byte) string {
	if len(data) > MaxNameSize {
		data = data[:MaxNameSize]
	}
	for i, b := range data {
		if b == 0 {
			if i == 0 {
				return UnknownName
			}
			return string(data[:i])
		}
	}
	// Absent, or no terminator inside the bounded window.
	return UnknownName
}
