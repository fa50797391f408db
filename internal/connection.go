package internal

import (
	"context"
	"sync"
)

// ConnectionManager serializes the token bootstrap of a session. The bootstrap
// runs until it succeeds once; a failed attempt is reported to its caller and
// the next call tries again.
type ConnectionManager struct {
	mu   sync.Mutex
	done bool
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Initialize runs fn unless a previous call already succeeded. Concurrent
// callers wait for the in-flight attempt and then observe its outcome or run
// their own attempt if it failed.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		return err
	}
	cm.done = true
	return nil
}

// IsInitialized returns true once a bootstrap attempt has succeeded.
func (cm *ConnectionManager) IsInitialized() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.done
}
