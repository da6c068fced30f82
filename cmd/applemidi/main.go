// Applemidi — a network MIDI (RTP-MIDI / AppleMIDI) session participant.
//
// It accepts a remote initiator's invitation on the control port, mirrors the
// handshake on the data port, answers clock-sync rounds, and hands the
// received MIDI byte stream to a sink. The built-in sink is a monitor that
// hex-dumps incoming MIDI at debug level.
//
// Configuration comes from defaults, an optional YAML file (-config),
// APPLEMIDI_* environment variables, and CLI flag overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/corvana/applemidi/internal/app"
	"github.com/corvana/applemidi/internal/config"
	"github.com/corvana/applemidi/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "Control port override, 1~65534 (data port is control+1)")
	name := flag.String("name", "", "Participant name advertised to initiators")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if *port != 0 {
		if *port < 1 || *port > 65534 {
			util.LogError("invalid -port (must be 1~65534)")
			os.Exit(1)
		}
		cfg.ControlPort = *port
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *debugMode {
		cfg.Debug = true
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("applemidi — v%s", version))
	pterm.Println()

	participant, err := app.NewParticipant(cfg, monitorSink)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.StartStatsReporter(ctx)

	if err := participant.Run(ctx); err != nil {
		util.LogError("participant terminated: %v", err)
		os.Exit(1)
	}

	util.LogNotice("participant stopped")
}

// monitorSink hex-dumps the received MIDI stream. A real consumer (a synth,
// a virtual MIDI port) would be hooked here instead; sinks must not block.
func monitorSink(data []byte) {
	if len(data) == 0 {
		return
	}
	util.LogDebug("MIDI [% X]", data)
}
