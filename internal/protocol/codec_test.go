package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestInvitationRoundTrip verifies that encoding and decoding are inverse
// operations for the three invitation commands.
func TestInvitationRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		inv  *Invitation
	}{
		{
			name: "IN with short name",
			inv: &Invitation{
				Command: CmdInvitation,
				Token:   0xDEADBEEF,
				SSRC:    0xCAFEBABE,
				Name:    "host",
			},
		},
		{
			name: "OK with default participant name",
			inv: &Invitation{
				Command: CmdInvitationAccepted,
				Token:   0x00000001,
				SSRC:    0xFFFFFFFF,
				Name:    "mt32-pi",
			},
		},
		{
			name: "NO with UTF-8 name",
			inv: &Invitation{
				Command: CmdInvitationRejected,
				Token:   0x12345678,
				SSRC:    0x9ABCDEF0,
				Name:    "ポート",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeInvitation(EncodeInvitation(tc.inv))
			if err != nil {
				t.Fatalf("DecodeInvitation failed: %v", err)
			}

			if decoded.Command != tc.inv.Command {
				t.Errorf("Command mismatch: got 0x%04X, want 0x%04X", decoded.Command, tc.inv.Command)
			}
			if decoded.Token != tc.inv.Token {
				t.Errorf("Token mismatch: got 0x%08X, want 0x%08X", decoded.Token, tc.inv.Token)
			}
			if decoded.SSRC != tc.inv.SSRC {
				t.Errorf("SSRC mismatch: got 0x%08X, want 0x%08X", decoded.SSRC, tc.inv.SSRC)
			}
			if decoded.Name != tc.inv.Name {
				t.Errorf("Name mismatch: got %q, want %q", decoded.Name, tc.inv.Name)
			}
		})
	}
}

// TestEncodeInvitationWire pins the exact wire layout of an accepted
// invitation: 16-byte header followed by only the populated name prefix and
// its NUL terminator.
func TestEncodeInvitationWire(t *testing.T) {
	frame := EncodeInvitation(&Invitation{
		Command: CmdInvitationAccepted,
		Token:   0xDEADBEEF,
		SSRC:    0x0A0B0C0D,
		Name:    "mt32-pi",
	})

	want := []byte{
		0xFF, 0xFF, // signature
		0x4F, 0x4B, // "OK"
		0x00, 0x00, 0x00, 0x02, // version
		0xDE, 0xAD, 0xBE, 0xEF, // initiator token
		0x0A, 0x0B, 0x0C, 0x0D, // SSRC
		'm', 't', '3', '2', '-', 'p', 'i', 0x00,
	}

	if !bytes.Equal(frame, want) {
		t.Errorf("wire mismatch:\n got  [% X]\n want [% X]", frame, want)
	}
}

// TestDecodeInvitationRejects covers the decode-failure table: short frames,
// bad signature, wrong version, and non-invitation commands.
func TestDecodeInvitationRejects(t *testing.T) {
	valid := EncodeInvitation(&Invitation{Command: CmdInvitation, Token: 1, SSRC: 2, Name: "x"})

	badSignature := append([]byte(nil), valid...)
	badSignature[0] = 0x12

	badVersion := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(badVersion[4:8], 3)

	wrongCommand := append([]byte(nil), valid...)
	binary.BigEndian.PutUint16(wrongCommand[2:4], CmdSync)

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"preamble only", valid[:4]},
		{"15 bytes (one short of header)", valid[:15]},
		{"bad signature", badSignature},
		{"wrong version", badVersion},
		{"non-invitation command", wrongCommand},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeInvitation(tc.data); err == nil {
				t.Fatal("expected decode error, got nil")
			}
		})
	}
}

// TestDecodeInvitationName covers the name fallback rules.
func TestDecodeInvitationName(t *testing.T) {
	header := EncodeInvitation(&Invitation{Command: CmdInvitation, Token: 1, SSRC: 2, Name: ""})[:16]

	unterminated := append(append([]byte(nil), header...), 'a', 'b', 'c')

	long := append([]byte(nil), header...)
	for i := 0; i < MaxNameSize+16; i++ {
		long = append(long, 'n')
	}

	testCases := []struct {
		name string
		data []byte
		want string
	}{
		{"absent name", header, UnknownName},
		{"empty name", append(append([]byte(nil), header...), 0x00), UnknownName},
		{"unterminated name", unterminated, UnknownName},
		{"oversized unterminated name", long, UnknownName},
		{"terminated name", append(append([]byte(nil), header...), 'p', 'i', 0x00), "pi"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := DecodeInvitation(tc.data)
			if err != nil {
				t.Fatalf("DecodeInvitation failed: %v", err)
			}
			if inv.Name != tc.want {
				t.Errorf("Name mismatch: got %q, want %q", inv.Name, tc.want)
			}
		})
	}
}

// TestEndSessionRoundTrip verifies BY encode/decode and its rejects.
func TestEndSessionRoundTrip(t *testing.T) {
	original := &EndSession{Token: 0xDEADBEEF, SSRC: 0xCAFEBABE}

	decoded, err := DecodeEndSession(EncodeEndSession(original))
	if err != nil {
		t.Fatalf("DecodeEndSession failed: %v", err)
	}
	if *decoded != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}

	frame := EncodeEndSession(original)

	short := frame[:15]
	if _, err := DecodeEndSession(short); err == nil {
		t.Error("expected error for short BY frame")
	}

	badVersion := append([]byte(nil), frame...)
	binary.BigEndian.PutUint32(badVersion[4:8], 1)
	if _, err := DecodeEndSession(badVersion); err == nil {
		t.Error("expected error for BY frame with wrong version")
	}
}

// TestSyncRoundTrip verifies CK encode/decode, its fixed size, and rejects.
func TestSyncRoundTrip(t *testing.T) {
	original := &Sync{
		SSRC:       0xCAFEBABE,
		Count:      2,
		Timestamps: [3]uint64{1000, 0x0102030405060708, 1200},
	}

	frame := EncodeSync(original)
	if len(frame) != 36 {
		t.Fatalf("sync frame is %d bytes, want 36", len(frame))
	}

	decoded, err := DecodeSync(frame)
	if err != nil {
		t.Fatalf("DecodeSync failed: %v", err)
	}
	if *decoded != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}

	for _, n := range []int{0, 12, 35, 37} {
		if _, err := DecodeSync(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte sync frame", n)
		}
	}

	badSignature := append([]byte(nil), frame...)
	badSignature[1] = 0x00
	if _, err := DecodeSync(badSignature); err == nil {
		t.Error("expected error for sync frame with bad signature")
	}
}

// TestReceiverFeedbackRoundTrip verifies RS encode/decode and rejects.
func TestReceiverFeedbackRoundTrip(t *testing.T) {
	original := &ReceiverFeedback{SSRC: 0x0A0B0C0D, Sequence: 0x12340000}

	frame := EncodeReceiverFeedback(original)
	if len(frame) != 12 {
		t.Fatalf("feedback frame is %d bytes, want 12", len(frame))
	}

	decoded, err := DecodeReceiverFeedback(frame)
	if err != nil {
		t.Fatalf("DecodeReceiverFeedback failed: %v", err)
	}
	if *decoded != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}

	if _, err := DecodeReceiverFeedback(frame[:11]); err == nil {
		t.Error("expected error for short feedback frame")
	}
	if _, err := DecodeReceiverFeedback(append(frame, 0)); err == nil {
		t.Error("expected error for oversized feedback frame")
	}
}

// TestCommand verifies preamble classification.
func TestCommand(t *testing.T) {
	testCases := []struct {
		name    string
		data    []byte
		wantCmd uint16
		wantOK  bool
	}{
		{"IN", []byte{0xFF, 0xFF, 0x49, 0x4E}, CmdInvitation, true},
		{"BY", []byte{0xFF, 0xFF, 0x42, 0x59}, CmdEndSession, true},
		{"bad signature", []byte{0x80, 0x61, 0x49, 0x4E}, 0, false},
		{"too short", []byte{0xFF, 0xFF}, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := Command(tc.data)
			if ok != tc.wantOK || cmd != tc.wantCmd {
				t.Errorf("Command() = (0x%04X, %v), want (0x%04X, %v)", cmd, ok, tc.wantCmd, tc.wantOK)
			}
		})
	}
}

// TestCommandName verifies known commands resolve to their mnemonics and
// unknown codes fall back to hex.
func TestCommandName(t *testing.T) {
	testCases := []struct {
		cmd  uint16
		want string
	}{
		{CmdInvitation, "IN"},
		{CmdInvitationAccepted, "OK"},
		{CmdInvitationRejected, "NO"},
		{CmdEndSession, "BY"},
		{CmdSync, "CK"},
		{CmdReceiverFeedback, "RS"},
		{0x5858, "0x5858"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			if got := CommandName(tc.cmd); got != tc.want {
				t.Errorf("CommandName(0x%04X) = %q, want %q", tc.cmd, got, tc.want)
			}
		})
	}
}
