package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// ReconcileScheduler runs the bulk alert reconciliation periodically, so
// alerts move between warning, critical and expired as days pass even when
// no item changes.
type ReconcileScheduler struct {
	alerts    *AlertService
	ctx       context.Context
	cancel    context.CancelFunc
	interval  time.Duration
	timeout   time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewReconcileScheduler creates a scheduler. An interval of 0 disables the
// periodic runs; Start then only runs once.
func NewReconcileScheduler(alerts *AlertService, interval time.Duration) *ReconcileScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReconcileScheduler{
		alerts:   alerts,
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
		timeout:  5 * time.Minute,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one reconciliation immediately in the background and then one
// per interval until Stop.
func (s *ReconcileScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	if s.interval > 0 {
		s.ticker = time.NewTicker(s.interval)
	}
	s.mu.Unlock()

	if s.interval > 0 {
		log.Printf("[ReconcileScheduler] Started - Interval: %v", s.interval)
	} else {
		log.Printf("[ReconcileScheduler] Periodic runs disabled, reconciling once at startup")
	}

	go s.run()
}

func (s *ReconcileScheduler) run() {
	defer close(s.done)

	s.runReconcile()
	if s.ticker == nil {
		<-s.stopCh
		return
	}

	for {
		select {
		case <-s.ticker.C:
			s.runReconcile()
		case <-s.stopCh:
			log.Printf("[ReconcileScheduler] Stopped")
			return
		}
	}
}

func (s *ReconcileScheduler) runReconcile() {
	if _, err := s.RunNow(); err != nil {
		log.Printf("[ReconcileScheduler] Error during reconciliation: %v", err)
	}
}

// Stop stops the scheduler, cancels a run in progress and waits for it to return.
func (s *ReconcileScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.cancel()
		s.isRunning = false
		s.mu.Unlock()

		if running {
			<-s.done
		}
	})
}

// RunNow triggers an immediate reconciliation of every item.
func (s *ReconcileScheduler) RunNow() (ReconcileReport, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	return s.alerts.ReconcileAll(ctx)
}
