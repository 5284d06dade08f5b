// Package locks provides the claim lock a worker takes on an execution before
// running it, so that a redelivered request is never executed twice.
package locks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const DefaultTTL = 30 * time.Second

var ErrInvalidLock = errors.New("resource and owner required")

// Locker grants exclusive, expiring ownership of a resource.
type Locker interface {
	// Acquire reports false without error when another owner holds the lock.
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
	// Renew extends the lock if owner still holds it.
	Renew(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
	// Release frees the lock if owner still holds it.
	Release(ctx context.Context, resource, owner string) (bool, error)
}

// ExecutionResource is the lock resource for an execution id.
func ExecutionResource(executionID string) string {
	return "execution:" + executionID
}

func normalize(resource, owner string) (string, string, error) {
	resource = strings.TrimSpace(resource)
	owner = strings.TrimSpace(owner)

	if resource == "" || owner == "" {
		return "", "", ErrInvalidLock
	}

	return resource, owner, nil
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}

	return ttl
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// MemoryLocker is a process-local Locker for single-worker deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]memoryLock
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{now: time.Now, locks: make(map[string]memoryLock)}
}

func (m *MemoryLocker) Acquire(_ context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if current, ok := m.locks[resource]; ok && now.Before(current.expiresAt) {
		return false, nil
	}

	m.locks[resource] = memoryLock{owner: owner, expiresAt: now.Add(normalizeTTL(ttl))}

	return true, nil
}

func (m *MemoryLocker) Renew(_ context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	current, ok := m.locks[resource]
	if !ok || current.owner != owner || !now.Before(current.expiresAt) {
		return false, nil
	}

	current.expiresAt = now.Add(normalizeTTL(ttl))
	m.locks[resource] = current

	return true, nil
}

func (m *MemoryLocker) Release(_ context.Context, resource, owner string) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.locks[resource]
	if !ok || current.owner != owner {
		return false, nil
	}

	delete(m.locks, resource)

	return true, nil
}
