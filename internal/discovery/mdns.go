// ABOUTME: mDNS advertisement for the opusd service
// ABOUTME: Publishes the WebSocket endpoint on the local network
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service type opusd advertises under.
const ServiceType = "_opusd._tcp"

// Config holds advertisement configuration.
type Config struct {
	ServiceName string
	Port        int
}

// Manager owns one mDNS advertisement.
type Manager struct {
	config Config
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates an advertisement manager.
func NewManager(config Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{config: config, log: log, ctx: ctx, cancel: cancel}
}

// Advertise publishes the service until Stop is called.
func (m *Manager) Advertise() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/opus"},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info("mDNS advertisement started",
		"service", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement.
func (m *Manager) Stop() {
	m.cancel()
}

// localIPs returns the non-loopback unicast addresses to advertise.
func localIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interfaces")
	}
	return ips, nil
}
