package station_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfer-io/lfs-station/pkg/station"
)

// fakeLink connects after a given number of status polls.
type fakeLink struct {
	mx          sync.Mutex
	connectedAt int // 0 means never
	polls       int
	beginErr    error
	statusErrs  int
	creds       station.Credentials
}

func (l *fakeLink) Begin(_ context.Context, creds station.Credentials) error {
	l.creds = creds
	return l.beginErr
}

func (l *fakeLink) Status(context.Context) (station.Status, error) {
	l.mx.Lock()
	defer l.mx.Unlock()

	l.polls++
	if l.polls <= l.statusErrs {
		return station.StatusIdle, errors.New("radio busy")
	}
	if l.connectedAt != 0 && l.polls >= l.connectedAt {
		return station.StatusConnected, nil
	}
	return station.StatusConnecting, nil
}

func (l *fakeLink) LocalIP(context.Context) (string, error) {
	return "192.168.43.10", nil
}

func Test_U_Associate(t *testing.T) {
	t.Parallel()

	var tests = map[string]struct {
		Link             *fakeLink
		Timeout          time.Duration
		ExpectedState    station.State
		ExpectedAttempts int
	}{
		"immediate": {
			Link:             &fakeLink{connectedAt: 1},
			Timeout:          time.Second,
			ExpectedState:    station.StateConnected,
			ExpectedAttempts: 1,
		},
		"after-polls": {
			Link:             &fakeLink{connectedAt: 3},
			Timeout:          5 * time.Second,
			ExpectedState:    station.StateConnected,
			ExpectedAttempts: 3,
		},
		"status-errors-tolerated": {
			Link:             &fakeLink{connectedAt: 1, statusErrs: 2},
			Timeout:          5 * time.Second,
			ExpectedState:    station.StateConnected,
			ExpectedAttempts: 3,
		},
		"timeout": {
			Link:          &fakeLink{},
			Timeout:       20 * time.Millisecond,
			ExpectedState: station.StateTimedOut,
		},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			t.Parallel()

			res, err := station.Associate(context.Background(), tt.Link, station.Credentials{
				SSID:     "AndroidAP8342",
				Password: "12345678",
			}, station.Options{
				Timeout:      tt.Timeout,
				PollInterval: time.Millisecond,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.ExpectedState, res.State)
			assert.Equal(t, "AndroidAP8342", tt.Link.creds.SSID)

			if tt.ExpectedState == station.StateConnected {
				assert.Equal(t, tt.ExpectedAttempts, res.Attempts)
				assert.Equal(t, "192.168.43.10", res.IP)
			} else {
				assert.Empty(t, res.IP)
				assert.GreaterOrEqual(t, res.Elapsed, tt.Timeout)
			}
		})
	}
}

func Test_U_AssociateBeginFails(t *testing.T) {
	t.Parallel()

	beginErr := errors.New("no radio")
	_, err := station.Associate(context.Background(), &fakeLink{beginErr: beginErr}, station.Credentials{}, station.Options{})
	assert.ErrorIs(t, err, beginErr)
}

func Test_U_AssociateCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := station.Associate(ctx, &fakeLink{}, station.Credentials{}, station.Options{
		Timeout:      time.Hour,
		PollInterval: time.Millisecond,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_U_HostLink(t *testing.T) {
	t.Parallel()

	res, err := station.Associate(context.Background(), station.HostLink{}, station.Credentials{}, station.Options{})
	require.NoError(t, err)
	assert.Equal(t, station.StateConnected, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func Test_U_StatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", station.StatusConnected.String())
	assert.Equal(t, "status(42)", station.Status(42).String())
}
