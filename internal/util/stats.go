package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide traffic/session counter.
var Stats = &stats{}

type stats struct {
	Sessions      atomic.Int64 // cumulative count of sessions established since process start
	Resets        atomic.Int64 // cumulative count of session resets since process start
	MIDIBytes     atomic.Int64 // cumulative MIDI bytes delivered to the sink
	FeedbackSent  atomic.Int64 // cumulative receiver-feedback frames emitted
	DroppedFrames atomic.Int64 // datagrams dropped because an inbox was full
}

func (s *stats) AddSession()      { s.Sessions.Add(1) }
func (s *stats) AddReset()        { s.Resets.Add(1) }
func (s *stats) AddMIDI(n int)    { s.MIDIBytes.Add(int64(n)) }
func (s *stats) AddFeedback()     { s.FeedbackSent.Add(1) }
func (s *stats) AddDroppedFrame() { s.DroppedFrames.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs traffic statistics
// every 10 seconds while there is activity. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevMIDI, prevFeedback, prevSessions, prevResets int64
		for {
			select {
			case <-ticker.C:
				midi := Stats.MIDIBytes.Load()
				feedback := Stats.FeedbackSent.Load()
				sessions := Stats.Sessions.Load()
				resets := Stats.Resets.Load()

				rate := float64(midi-prevMIDI) / 10.0
				fb := feedback - prevFeedback
				established := sessions - prevSessions
				torn := resets - prevResets

				if rate > 0 || fb > 0 || established > 0 || torn > 0 {
					pterm.DefaultLogger.Info(formatStats(rate, fb, established, torn))
				}

				prevMIDI = midi
				prevFeedback = feedback
				prevSessions = sessions
				prevResets = resets

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(rate float64, fb, established, torn int64) string {
	return fmt.Sprintf("MIDI: %s/s | Feedback: %2d | Sessions: %2d↑ %2d↓",
		formatBytes(rate),
		fb,
		established,
		torn,
	)
}
