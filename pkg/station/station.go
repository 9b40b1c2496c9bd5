package station

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
)

// Status is the state of the link to the access point.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Credentials of the access point to join.
type Credentials struct {
	SSID     string
	Password string //nolint:gosec //#gosec G117 -- FP, we don't marshal this object into JSON
}

// Link is a WiFi interface in station mode.
type Link interface {
	// Begin starts associating with the access point. It does not wait for
	// the association to complete.
	Begin(ctx context.Context, creds Credentials) error
	// Status reports the current state of the link.
	Status(ctx context.Context) (Status, error)
	// LocalIP returns the address obtained once connected.
	LocalIP(ctx context.Context) (string, error)
}

// State is the outcome of an association.
type State string

const (
	StateConnected State = "connected"
	StateTimedOut  State = "timed-out"
)

// Result of Associate.
type Result struct {
	State    State
	IP       string
	Attempts int
	Elapsed  time.Duration
}

// Options of Associate.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Associate joins the access point then polls the link until it reports
// connected, or until the timeout elapses. A timeout is an outcome, not an
// error: errors are only returned when the association could not start or
// the context got canceled.
func Associate(ctx context.Context, link Link, creds Credentials, opts Options) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := global.Log()

	logger.Info(ctx, "trying to connect",
		zap.String("ssid", creds.SSID),
		zap.Duration("timeout", opts.Timeout),
	)
	start := time.Now()
	if err := link.Begin(ctx, creds); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	res := &Result{}
	for {
		res.Attempts++
		st, err := link.Status(ctx)
		switch {
		case err != nil:
			logger.Debug(ctx, "polling link status", zap.Error(err))
		case st == StatusConnected:
			res.State = StateConnected
			res.Elapsed = time.Since(start)
			ip, err := link.LocalIP(ctx)
			if err != nil {
				logger.Warn(ctx, "getting local IP", zap.Error(err))
			}
			res.IP = ip
			logger.Info(ctx, "WiFi connected successfully",
				zap.String("ip", res.IP),
				zap.Int("attempts", res.Attempts),
				zap.Duration("elapsed", res.Elapsed),
			)
			return res, nil
		default:
			logger.Debug(ctx, "waiting for association",
				zap.Stringer("status", st),
				zap.Int("attempt", res.Attempts),
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			res.State = StateTimedOut
			res.Elapsed = time.Since(start)
			logger.Warn(ctx, "WiFi association timed out",
				zap.String("ssid", creds.SSID),
				zap.Int("attempts", res.Attempts),
			)
			return res, nil
		case <-ticker.C:
		}
	}
}
