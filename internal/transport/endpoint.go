// Package transport provides the paired UDP endpoints an AppleMIDI session
// runs over. Each endpoint owns one socket and a reader goroutine feeding a
// bounded inbox channel; the session loop is the single consumer.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/corvana/applemidi/internal/util"
)

// Tuning constants.
const (
	// BufferSize bounds a received datagram; comfortably above the usual
	// UDP MTU so session frames are never truncated.
	BufferSize = 2048

	inboxBufferSize = 64
)

// Datagram is one received UDP datagram together with its source address.
type Datagram struct {
	Data []byte
	From netip.AddrPort
}

// Endpoint is a single bound UDP socket. Ownership is exclusive: one reader
// goroutine fills the inbox, one consumer drains it, and writes may come
// from the consumer only.
type Endpoint struct {
	conn  *net.UDPConn
	inbox chan Datagram
	fatal chan error
}

// Listen binds a UDP endpoint on all interfaces. Bind failures are surfaced
// to the caller; nothing is started yet.
func Listen(port int) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP port %d: %w", port, err)
	}

	return &Endpoint{
		conn:  conn,
		inbox: make(chan Datagram, inboxBufferSize),
		fatal: make(chan error, 1),
	}, nil
}

// Start launches the reader goroutine. Reads block on the socket; ctx
// cancellation closes the socket to unblock the final read. When the inbox
// is full the datagram is dropped rather than stalling the socket.
func (e *Endpoint) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		e.conn.Close()
	}()

	go func() {
		buf := make([]byte, BufferSize)
		for {
			n, from, err := e.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				select {
				case <-ctx.Done():
					// Socket closed by teardown — not an error.
				default:
					select {
					case e.fatal <- err:
					default:
					}
				}
				return
			}

			data := make([]byte, n)
			copy(data, buf[:n])

			select {
			case e.inbox <- Datagram{Data: data, From: from}:
			default:
				util.Stats.AddDroppedFrame()
				util.LogWarning("inbox full, dropping %d-byte datagram from %s", n, from)
			}
		}
	}()
}

// Inbox returns the channel of received datagrams.
func (e *Endpoint) Inbox() <-chan Datagram {
	return e.inbox
}

// Fatal returns a channel that yields the first unrecoverable socket error.
func (e *Endpoint) Fatal() <-chan error {
	return e.fatal
}

// SendTo writes one datagram. UDP writes are atomic; a short write is
// reported as an error.
func (e *Endpoint) SendTo(data []byte, to netip.AddrPort) error {
	n, err := e.conn.WriteToUDPAddrPort(data, to)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short send: %d/%d bytes", n, len(data))
	}
	return nil
}

// LocalPort returns the port the endpoint is bound to.
func (e *Endpoint) LocalPort() int {
	return e.conn.LocalAddr().(*net.UDPAddr).Port
}

// Close releases the socket. Safe to call after ctx cancellation has
// already closed it.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}
