package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"
)

// DialFunc opens a new session to the backend at address.
type DialFunc func(ctx context.Context, address string) (Client, error)

type sessionEntry struct {
	client    Client
	refCount  int64
	lastError error
	mu        sync.RWMutex
}

// Registry shares one backend session per address between environments and closes it when
// the last holder releases it.
type Registry struct {
	entries map[string]*sessionEntry
	mu      sync.Mutex
	dial    DialFunc
	logger  logging.Logger
}

// NewRegistry returns an empty registry that opens sessions with dial.
func NewRegistry(dial DialFunc, logger logging.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*sessionEntry),
		dial:    dial,
		logger:  logger,
	}
}

// Acquire returns the session for address, dialing it on first use. The returned client's
// Close releases the reference instead of closing the shared session.
func (r *Registry) Acquire(ctx context.Context, address string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[address]
	if exists && entry.client != nil {
		atomic.AddInt64(&entry.refCount, 1)
		return &sharedClient{Client: entry.client, registry: r, address: address}, nil
	}

	client, err := r.dial(ctx, address)
	if err != nil {
		// remembered for Status; the next Acquire dials again
		r.entries[address] = &sessionEntry{lastError: err}
		return nil, fmt.Errorf("failed to open backend session %s: %w", address, err)
	}

	r.entries[address] = &sessionEntry{client: client, refCount: 1}
	r.logger.Debugf("Opened backend session for %s", address)
	return &sharedClient{Client: client, registry: r, address: address}, nil
}

// Release drops one reference to the session for address.
func (r *Registry) Release(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[address]
	if !exists {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if atomic.AddInt64(&entry.refCount, -1) > 0 {
		return
	}
	if entry.client != nil {
		if err := entry.client.Close(); err != nil {
			r.logger.Warnf("error closing backend session %s: %v", address, err)
		}
	}
	delete(r.entries, address)
	entry.client = nil
	atomic.StoreInt64(&entry.refCount, 0)
}

// ForceClose closes the session for address regardless of outstanding references.
func (r *Registry) ForceClose(address string) error {
	r.mu.Lock()
	entry, exists := r.entries[address]
	if exists {
		delete(r.entries, address)
	}
	r.mu.Unlock()

	if !exists {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	var err error
	if entry.client != nil {
		err = entry.client.Close()
		entry.client = nil
	}
	atomic.StoreInt64(&entry.refCount, 0)
	return err
}

// Status reports the reference count, whether a live session exists and the last dial error.
func (r *Registry) Status(address string) (int64, bool, error) {
	r.mu.Lock()
	entry, exists := r.entries[address]
	r.mu.Unlock()

	if !exists {
		return 0, false, nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return atomic.LoadInt64(&entry.refCount), entry.client != nil, entry.lastError
}

type sharedClient struct {
	Client
	registry *Registry
	address  string
	once     sync.Once
}

func (s *sharedClient) Close() error {
	s.once.Do(func() { s.registry.Release(s.address) })
	return nil
}
