// Package storage persists small keyed values (the cart lives under one key)
// and announces writes to other execution contexts sharing the same backend.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a synchronous key/value store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by backends able to signal that a key changed,
// possibly from another process. Signals carry no payload; readers re-read.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}

const defaultPollInterval = 250 * time.Millisecond

// signal performs a non-blocking send; a pending signal already covers this one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// pollWatch calls probe every interval and signals whenever the returned
// fingerprint differs from the previous one.
func pollWatch(ctx context.Context, interval time.Duration, probe func(context.Context) (string, error)) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	out := make(chan struct{}, 1)
	last, _ := probe(ctx)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := probe(ctx)
				if err != nil {
					continue
				}
				if current != last {
					last = current
					signal(out)
				}
			}
		}
	}()
	return out
}
