// ABOUTME: mDNS service discovery for bridge endpoints
// ABOUTME: Receivers advertise their UDP port, senders browse for a receiver
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ServiceType is the mDNS service of a bridge receiver
const ServiceType = "_sendspin-bridge._udp"

// queryTimeout bounds one browse round
const queryTimeout = 3 * time.Second

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Channels    int // advertised output channels
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	peers  chan *Peer
}

// Peer describes a discovered receiver
type Peer struct {
	Name     string
	Host     string
	Port     int
	Channels int
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		peers:  make(chan *Peer, 10),
	}
}

// Advertise announces this receiver until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return errors.Wrap(err, "failed to get local IPs")
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create service")
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return errors.Wrap(err, "failed to create mdns server")
	}

	logrus.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		_ = server.Shutdown()
	}()

	return nil
}

// Browse searches for receivers until Stop; results arrive on Peers
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for m.ctx.Err() == nil {
		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				peer := parseEntry(entry)
				if peer == nil {
					continue
				}
				logrus.Printf("Discovered receiver: %s at %s:%d", peer.Name, peer.Host, peer.Port)
				select {
				case m.peers <- peer:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: queryTimeout,
			Entries: entries,
		}
		err := mdns.Query(params)
		close(entries)
		<-done
		if err != nil {
			logrus.Debugf("mDNS query failed: %v", err)
			select {
			case <-time.After(queryTimeout):
			case <-m.ctx.Done():
			}
		}
	}
}

// Peers returns the channel of discovered receivers
func (m *Manager) Peers() <-chan *Peer {
	return m.peers
}

// Find browses until a receiver whose instance name is name appears, or
// any receiver when name is empty
func (m *Manager) Find(ctx context.Context, name string) (*Peer, error) {
	m.Browse()
	for {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "no receiver found")
		case p := <-m.peers:
			if name == "" || p.Name == name {
				return p, nil
			}
		}
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

func txtRecords(c Config) []string {
	txt := []string{"proto=znjb"}
	if c.Channels > 0 {
		txt = append(txt, "chan="+strconv.Itoa(c.Channels))
	}
	return txt
}

// parseEntry converts a browse result. Entries without an IPv4 address
// are skipped.
func parseEntry(e *mdns.ServiceEntry) *Peer {
	if e == nil || e.AddrV4 == nil {
		return nil
	}
	p := &Peer{
		Name: instanceName(e.Name),
		Host: e.AddrV4.String(),
		Port: e.Port,
	}
	for _, f := range e.InfoFields {
		if v, ok := strings.CutPrefix(f, "chan="); ok {
			p.Channels, _ = strconv.Atoi(v)
		}
	}
	return p
}

// instanceName strips the service and domain from a full entry name
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i >= 0 {
		full = full[:i]
	}
	return strings.ReplaceAll(full, `\ `, " ")
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
