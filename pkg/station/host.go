package station

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// HostLink is a link for hosts already attached to a network: it reports
// connected as soon as the association begins.
type HostLink struct{}

var _ Link = (*HostLink)(nil)

func (HostLink) Begin(context.Context, Credentials) error {
	return nil
}

func (HostLink) Status(context.Context) (Status, error) {
	return StatusConnected, nil
}

// LocalIP returns the first IPv4 address of an up, non-loopback interface.
func (HostLink) LocalIP(context.Context) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
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
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					return ip4.String(), nil
				}
			}
		}
	}
	return "", errors.New("no IPv4 address found")
}
