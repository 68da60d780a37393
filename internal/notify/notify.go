// Package notify publishes top-hotel change announcements to subscribed
// clients over UDP multicast.
package notify

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// Notifier publishes a human-readable announcement for a city. The ranking
// engine calls it once per city whose top hotel changed during a pass.
type Notifier interface {
	Notify(city, message string) error
}

// Multicast sends announcements as plain UTF-8 datagrams to a multicast
// group. Clients join the group and render the text as-is.
type Multicast struct {
	conn *net.UDPConn
	addr *net.UDPAddr
	log  zerolog.Logger
}

// NewMulticast dials the multicast group at addr ("host:port").
func NewMulticast(addr string, log zerolog.Logger) (*Multicast, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("notify: resolving multicast address %q: %w", addr, err)
	}
	if !udpAddr.IP.IsMulticast() {
		return nil, fmt.Errorf("notify: %s is not a multicast address", udpAddr.IP)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("notify: dialing multicast group: %w", err)
	}
	return &Multicast{
		conn: conn,
		addr: udpAddr,
		log:  log.With().Str("component", "notify").Logger(),
	}, nil
}

// Notify publishes one announcement datagram.
func (m *Multicast) Notify(city, message string) error {
	if _, err := m.conn.Write([]byte(message)); err != nil {
		return fmt.Errorf("notify: publishing for %s: %w", city, err)
	}
	m.log.Debug().Str("city", city).Str("message", message).Msg("notification published")
	return nil
}

// Close releases the socket.
func (m *Multicast) Close() error {
	return m.conn.Close()
}
