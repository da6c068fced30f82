package session

import (
	"github.com/corvana/applemidi/internal/protocol"
	"github.com/corvana/applemidi/internal/util"
)

// handleSync responds to the initiator's three-step clock-sync round.
// Count 0 opens a round: echo timestamp1 and answer with our own time.
// Count 2 closes it: both peer timestamps are known, so the offset between
// the two clocks can be estimated. Counts other than 0 and 2, or a foreign
// SSRC, are rejected.
func (m *Machine) handleSync(ck *protocol.Sync, now uint64) {
	if ck.SSRC != m.initiatorSSRC || (ck.Count != 0 && ck.Count != 2) {
		util.LogError("[%08x] unexpected sync packet (ssrc=%08x count=%d)", m.tag, ck.SSRC, ck.Count)
		return
	}

	switch ck.Count {
	case 0:
		reply := protocol.EncodeSync(&protocol.Sync{
			SSRC:       m.localSSRC,
			Count:      1,
			Timestamps: [3]uint64{ck.Timestamps[0], now, 0},
		})
		// Sync arrived on the data port; the reply goes out the same way.
		if err := m.conn.SendMIDI(reply, m.peerMIDI); err != nil {
			util.LogError("[%08x] couldn't send sync reply: %v", m.tag, err)
		}

	case 2:
		m.offsetEstimate = ((ck.Timestamps[2] + ck.Timestamps[0]) / 2) - ck.Timestamps[1]
		util.LogNotice("[%08x] offset estimate: %d", m.tag, m.offsetEstimate)
	}

	m.lastSyncTime = now
}

// Advance applies the time-driven half of the engine: feedback cadence and
// liveness timeouts. It is called once per loop iteration with the timestamp
// captured after I/O drain.
func (m *Machine) Advance(now uint64) {
	switch m.state {
	case StateMIDIInvitation:
		if now-m.lastSyncTime > SyncTimeout {
			util.LogError("[%08x] MIDI port invitation timed out", m.tag)
			m.Reset()
		}

	case StateConnected:
		if now-m.lastFeedbackTime > FeedbackPeriod {
			if m.rxSequence != m.lastFeedbackSequence {
				m.sendFeedback()
			}
			// Advance the cadence even when idle so a quiet stream does not
			// produce a burst of reports later.
			m.lastFeedbackTime = now
		}

		if now-m.lastSyncTime > SyncTimeout {
			util.LogError("[%08x] initiator timed out", m.tag)
			m.Reset()
		}
	}
}

// sendFeedback reports the most recently received RTP sequence so the initiator
// can purge its retransmission journal. The acknowledged sequence is only
// recorded once the frame is actually on the wire.
func (m *Machine) sendFeedback() {
	frame := protocol.EncodeReceiverFeedback(&protocol.ReceiverFeedback{
		SSRC:     m.localSSRC,
		Sequence: uint32(m.rxSequence) << 16,
	})

	// Feedback is data-port traffic, like the sync replies.
	if err := m.conn.SendMIDI(frame, m.peerMIDI); err != nil {
		util.LogError("[%08x] couldn't send receiver feedback: %v", m.tag, err)
		return
	}

	util.Stats.AddFeedback()
	m.lastFeedbackSequence = m.rxSequence
}
