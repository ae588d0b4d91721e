package portal

import (
	"context"
	"sync"
	"sync/atomic"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Subscription is a live NewWave registration. It must be cancelled by its owner.
type Subscription struct {
	sub    event.Subscription
	cancel context.CancelFunc

	cancelled atomic.Bool
	once      sync.Once
	quit      chan struct{}
	done      chan struct{}
	errCh     chan error
}

func newSubscription(sub event.Subscription, cancel context.CancelFunc) *Subscription {
	return &Subscription{
		sub:    sub,
		cancel: cancel,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		errCh:  make(chan error, 1),
	}
}

func (s *Subscription) loop(logs <-chan ethtypes.Log, deliver func(ethtypes.Log)) {
	defer close(s.done)
	for {
		select {
		case lg := <-logs:
			if s.cancelled.Load() {
				return
			}
			deliver(lg)
		case err := <-s.sub.Err():
			if err != nil && !s.cancelled.Load() {
				log.Errorf("wave subscription ended: %s", err)
				s.errCh <- err
			}
			return
		case <-s.quit:
			return
		}
	}
}

// Cancel unregisters the listener. It is safe to call more than once, and from inside
// the event callback. Events that arrive after Cancel are never delivered.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		close(s.quit)
		s.sub.Unsubscribe()
		s.cancel()
	})
}

// Err reports a subscription the node terminated. It is never sent to after Cancel.
func (s *Subscription) Err() <-chan error {
	return s.errCh
}

// Done is closed once the delivery goroutine exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
