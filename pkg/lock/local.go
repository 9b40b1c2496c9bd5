package lock

import (
	"context"
	"sync"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

var (
	localLocks sync.Map
)

type LocalLock struct {
	key string
	mx  *sync.Mutex
}

var _ Lock = (*LocalLock)(nil)

func NewLocalLock(key string) *LocalLock {
	lock, _ := localLocks.LoadOrStore(key, &LocalLock{
		key: key,
		mx:  &sync.Mutex{},
	})
	return lock.(*LocalLock)
}

func (lock *LocalLock) Key() string {
	return lock.key
}

func (lock *LocalLock) TryLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !lock.mx.TryLock() {
		return errs.ErrLockUnavailable
	}
	return nil
}

func (lock *LocalLock) Unlock(_ context.Context) error {
	lock.mx.Unlock()
	return nil
}
