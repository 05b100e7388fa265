// Package mdns advertises the Booksy server on the local network through the
// Avahi daemon, so clients can find it without manual configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"

	"github.com/booksy/booksy-server/internal/domain"
)

const (
	// ServiceType is the DNS-SD service type for Booksy servers.
	ServiceType = "_booksy._tcp"

	// APIVersion is the API version advertised in TXT records.
	APIVersion = "v1"

	serviceDomain = "local"
)

// Service manages the Avahi entry group for this server.
type Service struct {
	logger *slog.Logger
	mu     sync.Mutex

	conn   *dbus.Conn
	server *avahi.Server
	group  *avahi.EntryGroup
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger}
}

// Start publishes the server on port. Calling it again replaces the
// previous advertisement.
//
// Errors are usually non-fatal: containers and hosts without avahi-daemon
// have no system bus to talk to.
func (s *Service) Start(instance *domain.Instance, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect to avahi: %w", err)
	}

	group, err := server.EntryGroupNew()
	if err != nil {
		server.Close()
		conn.Close()
		return fmt.Errorf("create entry group: %w", err)
	}

	host, err := server.GetHostNameFqdn()
	if err != nil {
		host = ""
	}

	err = group.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		instanceName(instance),
		ServiceType,
		serviceDomain,
		host,
		uint16(port),
		txtRecords(instance),
	)
	if err == nil {
		err = group.Commit()
	}
	if err != nil {
		server.EntryGroupFree(group)
		server.Close()
		conn.Close()
		return fmt.Errorf("publish service: %w", err)
	}

	s.conn, s.server, s.group = conn, server, group

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", instance.Name,
		"id", instance.ID,
	)
	return nil
}

// Stop withdraws the advertisement.
// Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopLocked() {
		s.logger.Info("mDNS advertisement stopped")
	}
}

// Running reports whether an advertisement is published.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group != nil
}

func (s *Service) stopLocked() bool {
	if s.group == nil {
		return false
	}
	if err := s.group.Reset(); err != nil {
		s.logger.Debug("reset avahi entry group", "error", err)
	}
	s.server.EntryGroupFree(s.group)
	s.server.Close()
	_ = s.conn.Close()
	s.conn, s.server, s.group = nil, nil, nil
	return true
}

// instanceName is the human readable DNS-SD instance label.
func instanceName(instance *domain.Instance) string {
	if instance.Name != "" {
		return instance.Name
	}
	if host, err := os.Hostname(); err == nil {
		return "Booksy on " + host
	}
	return "Booksy"
}

// txtRecords builds the TXT key=value pairs clients use to identify the
// server before connecting.
func txtRecords(instance *domain.Instance) [][]byte {
	version := instance.Version
	if version == "" {
		version = "dev"
	}
	records := []string{
		"id=" + instance.ID,
		"name=" + instance.Name,
		"version=" + version,
		"api=" + APIVersion,
	}
	if instance.RemoteURL != "" {
		records = append(records, "remote="+instance.RemoteURL)
	}

	out := make([][]byte, len(records))
	for i, r := range records {
		out[i] = []byte(r)
	}
	return out
}
