package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// WaitTimeout is the maximum time a client can wait for notifications
	WaitTimeout = 25 * time.Second

	// WaitChannelBuffer size for notification channels
	WaitChannelBuffer = 1
)

// WaitRegistry manages long-polling clients waiting for a game record to
// advance past a known version.
type WaitRegistry struct {
	mu       sync.RWMutex
	waiters  map[string][]*WaitRequest // gameID -> waiting clients
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// WaitRequest represents a single client waiting for game updates. The client
// returned by RegisterWait is the only receiver on Notify; registry-internal
// teardown is signaled through done.
type WaitRequest struct {
	Version uint64          // Last known record version
	Notify  chan struct{}   // Buffered channel for notifications
	Timer   *time.Timer     // Timeout timer
	Context context.Context // Client connection context
	GameID  string          // Game being watched

	done     chan struct{} // Closed once the request is released
	released sync.Once
}

func NewWaitRegistry() *WaitRegistry {
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		shutdown: make(chan struct{}),
	}
}

// RegisterWait registers a client to wait for the game to move past version.
func (w *WaitRegistry) RegisterWait(gameID string, version uint64, ctx context.Context) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	req := &WaitRequest{
		Version: version,
		Notify:  make(chan struct{}, WaitChannelBuffer),
		Context: ctx,
		GameID:  gameID,
		done:    make(chan struct{}),
	}

	req.Timer = time.AfterFunc(WaitTimeout, func() {
		w.handleTimeout(req)
	})

	w.waiters[gameID] = append(w.waiters[gameID], req)

	// Cleanup on client disconnect or shutdown. Never receives from
	// req.Notify: the notification belongs to the registered client.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			w.release(req)
		case <-req.done:
			// Released by a notification or timeout
		case <-w.shutdown:
			// Wake the client by sending, never by closing: a close could
			// race a concurrent NotifyGame send.
			select {
			case req.Notify <- struct{}{}:
			default:
			}
			w.release(req)
		}
	}()

	return req.Notify
}

// NotifyGame notifies all clients waiting on a game about a new version.
func (w *WaitRegistry) NotifyGame(gameID string, version uint64) {
	w.mu.RLock()
	waitList := make([]*WaitRequest, len(w.waiters[gameID]))
	copy(waitList, w.waiters[gameID])
	w.mu.RUnlock()

	for _, req := range waitList {
		if req.Version == version {
			continue
		}
		select {
		case req.Notify <- struct{}{}:
			w.release(req)
		default:
			// Channel full, a wake-up is already pending
		}
	}
}

// Shutdown gracefully shuts down the wait registry
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	close(w.shutdown)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown timed out")
	}
}

func (w *WaitRegistry) handleTimeout(req *WaitRequest) {
	select {
	case req.Notify <- struct{}{}:
	default:
	}
	w.release(req)
}

// release deregisters the request exactly once: stops the timer, removes the
// waiter, and unblocks the cleanup goroutine.
func (w *WaitRegistry) release(req *WaitRequest) {
	req.released.Do(func() {
		req.Timer.Stop()
		w.removeWaiter(req.GameID, req)
		close(req.done)
	})
}

func (w *WaitRegistry) removeWaiter(gameID string, req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitList := w.waiters[gameID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[gameID] = append(waitList[:i], waitList[i+1:]...)
			break
		}
	}
	if len(w.waiters[gameID]) == 0 {
		delete(w.waiters, gameID)
	}
}
