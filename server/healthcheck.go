package server

import (
	"context"
	"net/http"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/pkg/errors"

	"github.com/ctfer-io/lfs-station/global"
	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/fs"
	"github.com/ctfer-io/lfs-station/pkg/station"
)

func healthcheck(mount *fs.Mount, link station.Link) http.Handler {
	opts := []health.Option{
		health.WithComponent(health.Component{
			Name:    "lfs-station",
			Version: global.Version,
		}),
		health.WithSystemInfo(),
	}
	if mount != nil {
		opts = append(opts, health.WithChecks(health.Config{
			Name:    "flash",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				if !mount.Mounted() {
					return errs.ErrUnmounted
				}
				_, err := mount.ListDir(ctx, "/", 0)
				return err
			},
		}))
	}
	if link != nil {
		opts = append(opts, health.WithChecks(health.Config{
			Name:    "wifi",
			Timeout: 5 * time.Second,
			Check: func(ctx context.Context) error {
				st, err := link.Status(ctx)
				if err != nil {
					return err
				}
				if st != station.StatusConnected {
					return errors.Errorf("link is %s", st)
				}
				return nil
			},
		}))
	}

	h, err := health.New(opts...)
	if err != nil {
		panic(err)
	}
	return h.Handler()
}
