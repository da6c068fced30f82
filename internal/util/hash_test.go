package util

import (
	"net/netip"
	"testing"
)

// TestSessionTag verifies the tag is stable for an address and differs when
// the address or port changes.
func TestSessionTag(t *testing.T) {
	a := netip.MustParseAddrPort("192.0.2.10:5004")
	b := netip.MustParseAddrPort("192.0.2.10:5006")
	c := netip.MustParseAddrPort("192.0.2.11:5004")

	if SessionTag(a) != SessionTag(a) {
		t.Error("tag not stable for the same address")
	}
	if SessionTag(a) == SessionTag(b) {
		t.Error("tag collision across ports")
	}
	if SessionTag(a) == SessionTag(c) {
		t.Error("tag collision across hosts")
	}
}
