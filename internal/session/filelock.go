package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock guards a store directory so only one tyson process mutates the
// session index at a time.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.RWMutex
}

type FileLockConfig struct {
	Timeout  time.Duration // overall acquisition deadline; <= 0 means retry count only
	Retry    time.Duration
	MaxRetry int
}

func DefaultFileLockConfig() *FileLockConfig {
	return &FileLockConfig{
		Timeout:  30 * time.Second,
		Retry:    100 * time.Millisecond,
		MaxRetry: 10,
	}
}

func NewFileLock(basePath string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	lockPath := filepath.Join(basePath, "store.lock")
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	if err := fl.acquireWithRetry(cfg); err != nil {
		return nil, err
	}

	fl.acquiredAt = time.Now()
	slog.Debug("Store lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) acquireWithRetry(cfg *FileLockConfig) error {
	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	for i := 0; i < cfg.MaxRetry; i++ {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			return nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("session store %s is locked by another instance (timeout after %v)", fl.lockPath, cfg.Timeout)
		}
		if i < cfg.MaxRetry-1 {
			time.Sleep(cfg.Retry)
		}
	}
	return fmt.Errorf("session store %s is locked by another instance", fl.lockPath)
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release store lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Debug("Store lock released",
			"path", fl.lockPath,
			"held_duration_ms", time.Since(fl.acquiredAt).Milliseconds(),
		)
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.fileLock != nil
}
