package protocol

import (
	"fmt"

	"github.com/pion/rtp"
)

// RTP-MIDI data frames ride on a standard RTP header (RFC 6295 §2).
const (
	RTPVersion         = 2
	RTPMIDIPayloadType = 0x61
)

// RTP-MIDI command-header flag bits (the byte after the RTP header).
const (
	midiFlagLongLength = 1 << 7 // B: 12-bit length follows
	midiFlagJournal    = 1 << 6 // J: recovery journal present (ignored)
	midiFlagDeltaTime  = 1 << 5 // Z: delta time before first command
	midiFlagPhantom    = 1 << 4 // P: phantom status byte
)

// MIDIPacket is a decoded RTP-MIDI data frame. Data holds the MIDI list with
// SysEx segmentation escapes already stripped; the journal, if any, is not
// parsed.
type MIDIPacket struct {
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
	Data      []byte
}

// DecodeMIDI deserializes an RTP-MIDI data frame. The RTP fixed header is
// parsed with pion/rtp; on top of it the variable-length RTP-MIDI command
// header selects the MIDI list, whose outer SysEx segmentation markers are
// then stripped.
func DecodeMIDI(data []byte) (*MIDIPacket, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("bad RTP header: %w", err)
	}

	if pkt.Version != RTPVersion {
		return nil, fmt.Errorf("unsupported RTP version: %d", pkt.Version)
	}
	if len(pkt.CSRC) != 0 {
		return nil, fmt.Errorf("unexpected CSRC count: %d", len(pkt.CSRC))
	}
	if pkt.PayloadType != RTPMIDIPayloadType {
		return nil, fmt.Errorf("unexpected payload type: 0x%02X", pkt.PayloadType)
	}

	payload, err := midiList(pkt.Payload)
	if err != nil {
		return nil, err
	}

	fixed, err := FixupSysEx(payload)
	if err != nil {
		return nil, err
	}

	return &MIDIPacket{
		Sequence:  pkt.SequenceNumber,
		Timestamp: pkt.Timestamp,
		SSRC:      pkt.SSRC,
		Data:      fixed,
	}, nil
}

// midiList applies the RTP-MIDI command header and returns the MIDI list it
// delimits. Length is 4 bits, or 12 bits when the B flag is set. Journal
// bytes beyond the list are ignored.
func midiList(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("missing command header")
	}

	header := payload[0]
	length := int(header & 0x0F)
	offset := 1

	if header&midiFlagLongLength != 0 {
		if len(payload) < 2 {
			return nil, fmt.Errorf("truncated command header")
		}
		length = length<<8 | int(payload[1])
		offset = 2
	}

	if offset+length > len(payload) {
		return nil, fmt.Errorf("command header length %d overruns payload (%d bytes)", length, len(payload)-offset)
	}

	return payload[offset : offset+length], nil
}

// FixupSysEx strips the segmentation escape markers from the outer SysEx
// segment of a MIDI list:
//
//	F0 … F0  first segment    → drop trailing F0
//	F7 … F0  middle segment   → drop both markers
//	F7 … F7  last segment     → drop leading F7
//	F7 … F4  cancelled        → a single F4
//
// Anything else passes through unchanged. Reassembling the stream across
// segments is the receiver's concern; only the escapes are removed here.
// A segment opening with F7 that is shorter than two bytes is malformed.
func FixupSysEx(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	head := data[0]
	tail := data[len(data)-1]

	if head == 0xF0 && tail == 0xF0 {
		return data[:len(data)-1], nil
	}

	if head == 0xF7 {
		if len(data) < 2 {
			return nil, fmt.Errorf("segmented SysEx too short: %d bytes", len(data))
		}
		switch tail {
		case 0xF0:
			return data[1 : len(data)-1], nil
		case 0xF7:
			return data[1:], nil
		case 0xF4:
			return data[len(data)-1:], nil
		}
	}

	return data, nil
}
