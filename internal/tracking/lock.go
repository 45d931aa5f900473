package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked means another run holds the tracking lock.
var ErrLocked = errors.New("tracking store is locked by another run")

// Lock is an exclusive lock file next to the tracking store. A lock older
// than its TTL is considered abandoned and taken over, so a holder that
// runs longer than the TTL must keep it fresh with Touch or KeepAlive.
type Lock struct {
	path string
}

func AcquireLock(path string, ttl time.Duration) (*Lock, error) {
	abspath := absPath(path)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(abspath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, `{"pid":%d,"time":%d}`+"\n", os.Getpid(), time.Now().Unix())
			_ = f.Close()
			return &Lock{path: abspath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		fi, statErr := os.Stat(abspath)
		if statErr != nil {
			continue
		}
		if ttl > 0 && time.Since(fi.ModTime()) >= ttl {
			_ = os.Remove(abspath)
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, abspath)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, abspath)
}

func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Touch marks the lock as held now.
func (l *Lock) Touch() error {
	if l == nil {
		return nil
	}
	now := time.Now()
	if err := os.Chtimes(l.path, now, now); err != nil {
		return fmt.Errorf("refresh lock: %w", err)
	}
	return nil
}

// KeepAlive touches the lock every interval until ctx is done or the
// returned stop func is called. Refresh errors go to onErr when set.
func (l *Lock) KeepAlive(ctx context.Context, every time.Duration, onErr func(error)) (stop func()) {
	if l == nil || every <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Touch(); err != nil && onErr != nil {
					onErr(err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
