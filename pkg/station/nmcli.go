package station

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
)

const (
	connectTimeout = 30 * time.Second
	queryTimeout   = 5 * time.Second
)

// Runner runs a command and returns its trimmed combined output.
type Runner func(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)

// ExecRunner runs commands on the host.
func ExecRunner(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	s := strings.TrimSpace(string(out))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return s, errors.Errorf("command timed out: %s %v", name, args)
	}
	if err != nil {
		if s != "" {
			return s, errors.Wrapf(err, "command failed: %s %v: %s", name, args, s)
		}
		return s, errors.Wrapf(err, "command failed: %s %v", name, args)
	}
	return s, nil
}

// NmcliLink drives a WiFi interface through NetworkManager.
type NmcliLink struct {
	// Interface restricts the link to a device (e.g. wlan0). If empty, the
	// first WiFi device is used.
	Interface string
	Run       Runner

	mx         sync.Mutex
	device     string
	connectErr error
	done       chan struct{}
}

var _ Link = (*NmcliLink)(nil)

func NewNmcliLink(iface string) *NmcliLink {
	return &NmcliLink{
		Interface: iface,
		Run:       ExecRunner,
	}
}

// Begin launches the connection in the background, as nmcli blocks until
// the association completes or fails.
func (l *NmcliLink) Begin(ctx context.Context, creds Credentials) error {
	args := []string{"dev", "wifi", "connect", creds.SSID}
	if strings.TrimSpace(creds.Password) != "" {
		args = append(args, "password", creds.Password)
	}
	if l.Interface != "" {
		args = append(args, "ifname", l.Interface)
	}

	l.mx.Lock()
	l.connectErr = nil
	l.done = make(chan struct{})
	done := l.done
	l.mx.Unlock()

	go func() {
		defer close(done)
		_, err := l.Run(context.WithoutCancel(ctx), connectTimeout, "nmcli", args...)
		if err != nil {
			global.Log().Warn(ctx, "nmcli connect", zap.Error(err))
		}
		l.mx.Lock()
		l.connectErr = err
		l.mx.Unlock()
	}()
	return nil
}

// Wait blocks until the background connection command returns.
func (l *NmcliLink) Wait() {
	l.mx.Lock()
	done := l.done
	l.mx.Unlock()
	if done != nil {
		<-done
	}
}

func (l *NmcliLink) Status(ctx context.Context) (Status, error) {
	// nmcli -t -f DEVICE,TYPE,STATE dev
	out, err := l.Run(ctx, queryTimeout, "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "dev")
	if err != nil {
		return StatusIdle, err
	}

	l.mx.Lock()
	defer l.mx.Unlock()

	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ":")
		if len(parts) < 3 || parts[1] != "wifi" {
			continue
		}
		if l.Interface != "" && parts[0] != l.Interface {
			continue
		}
		l.device = parts[0]

		state := parts[2]
		switch {
		case state == "connected":
			return StatusConnected, nil
		case strings.HasPrefix(state, "connecting"):
			return StatusConnecting, nil
		case l.connectErr != nil:
			return StatusFailed, nil
		}
		return StatusIdle, nil
	}
	return StatusIdle, errors.New("no wifi device found")
}

func (l *NmcliLink) LocalIP(ctx context.Context) (string, error) {
	l.mx.Lock()
	device := l.device
	l.mx.Unlock()
	if device == "" {
		device = l.Interface
	}
	if device == "" {
		return "", errors.New("no wifi device known")
	}

	// nmcli -g IP4.ADDRESS dev show <device> -> 192.168.1.10/24
	out, err := l.Run(ctx, queryTimeout, "nmcli", "-g", "IP4.ADDRESS", "dev", "show", device)
	if err != nil {
		return "", err
	}
	first := strings.TrimSpace(strings.Split(out, "|")[0])
	first = strings.TrimSpace(strings.Split(first, "\n")[0])
	if first == "" {
		return "", errors.Errorf("no IPv4 address on %s", device)
	}
	ip, _, _ := strings.Cut(first, "/")
	return ip, nil
}
