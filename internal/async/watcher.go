package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/services"
)

// StatusSource reads the current status of an application.
type StatusSource interface {
	GetApplicationStatus(ctx context.Context, sess models.Session) (models.ApplicationStatus, error)
}

type watch struct {
	ctx     context.Context
	session models.Session
	last    models.ApplicationStatus
	updates chan models.ApplicationStatus
}

// StatusWatcher polls application status and reports changes to its watchers.
type StatusWatcher struct {
	source        StatusSource
	watches       map[int]*watch
	nextID        int
	mu            sync.Mutex
	pollInterval  time.Duration
	stopPolling   chan struct{}
	pollingActive bool
	stopped       bool
}

func NewStatusWatcher(source StatusSource, interval time.Duration) *StatusWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatusWatcher{
		source:       source,
		watches:      make(map[int]*watch),
		pollInterval: interval,
		stopPolling:  make(chan struct{}),
	}
}

// Watch delivers every status change for sess. The channel is closed once the
// status is terminal, ctx ends or the watcher is stopped.
func (w *StatusWatcher) Watch(ctx context.Context, sess models.Session) <-chan models.ApplicationStatus {
	updates := make(chan models.ApplicationStatus, 1)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		close(updates)
		return updates
	}

	w.nextID++
	w.watches[w.nextID] = &watch{ctx: ctx, session: sess, updates: updates}
	if !w.pollingActive {
		w.pollingActive = true
		go w.poll(w.stopPolling)
	}

	logger.Debug("Watching application %s", sess.RmLoanID)
	return updates
}

func (w *StatusWatcher) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if !w.checkWatches() {
			return
		}
		select {
		case <-stop:
			w.mu.Lock()
			for id, wt := range w.watches {
				close(wt.updates)
				delete(w.watches, id)
			}
			w.mu.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// checkWatches polls every watch once and reports whether any remain.
func (w *StatusWatcher) checkWatches() bool {
	w.mu.Lock()
	if len(w.watches) == 0 {
		w.pollingActive = false
		w.mu.Unlock()
		return false
	}
	active := make(map[int]*watch, len(w.watches))
	for id, wt := range w.watches {
		active[id] = wt
	}
	w.mu.Unlock()

	for id, wt := range active {
		if wt.ctx.Err() != nil {
			w.remove(id)
			continue
		}

		status, err := w.source.GetApplicationStatus(wt.ctx, wt.session)
		if err != nil {
			if errors.Is(err, services.ErrNoApplication) {
				w.remove(id)
				continue
			}
			logger.Error("Failed to fetch status for application %s: %v", wt.session.RmLoanID, err)
			continue
		}

		if status != wt.last {
			wt.last = status
			select {
			case wt.updates <- status:
			case <-wt.ctx.Done():
				w.remove(id)
				continue
			}
		}

		if status.Terminal() {
			logger.Info("Application %s reached %s", wt.session.RmLoanID, status.Status)
			w.remove(id)
		}
	}
	return true
}

func (w *StatusWatcher) remove(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if wt, ok := w.watches[id]; ok {
		close(wt.updates)
		delete(w.watches, id)
	}
}

// Stop ends polling and closes every open watch.
func (w *StatusWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.pollingActive {
		close(w.stopPolling)
		w.pollingActive = false
	}
}
