package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// flushTrigger records what started a flush pass, for logs and for the
// backoff gate: only timer-driven passes honor per-class backoff.
type flushTrigger string

const (
	flushTimer  flushTrigger = "timer"
	flushKick   flushTrigger = "kick"
	flushManual flushTrigger = "manual"
	flushFinal  flushTrigger = "final"
)

type flushStats struct {
	delivered int
	dropped   int
	err       error
}

// Start launches the background scheduler and subscribes to
// connectivity transitions. It is an error to start a running manager.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("delivery manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.unsubscribe = m.monitor.Subscribe(func(online bool) {
		m.handleConnectivity(runCtx, online)
	})
	m.wg.Add(1)
	m.mu.Unlock()

	go m.schedule(runCtx)

	// Kick once so requests that survived a crash replay without
	// waiting out the first ticker interval.
	m.kickFlush()

	m.logger.Info("delivery manager started",
		logging.Duration("flush_interval", m.flushInterval),
		logging.Int("workers", m.workers),
		logging.Bool(logging.FieldOnline, m.monitor.IsOnline()))
	return nil
}

// Stop halts the scheduler and waits for in-flight class workers to
// finish. Safe to call on a stopped manager.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	unsubscribe := m.unsubscribe
	m.running = false
	m.cancel = nil
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("delivery manager stopped")
}

// Close stops the manager and makes one bounded best-effort pass to
// deliver whatever is still queued. It never reports an error; requests
// that do not make it out stay on disk for the next run.
func (m *Manager) Close(ctx context.Context) {
	m.Stop()
	if m.finalFlushTimeout <= 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.finalFlushTimeout)
	defer cancel()

	stats := m.flushPass(flushCtx, flushFinal)
	switch {
	case stats.err != nil:
		m.logger.Warn("final flush incomplete; remaining requests stay queued",
			logging.Int("delivered", stats.delivered),
			logging.Error(stats.err))
	case stats.delivered > 0 || stats.dropped > 0:
		m.logger.Info("final flush finished",
			logging.Int("delivered", stats.delivered),
			logging.Int("dropped", stats.dropped))
	}
}

// Flush runs one synchronous flush pass. It ignores per-class backoff;
// the caller asked for delivery now.
func (m *Manager) Flush(ctx context.Context) error {
	return m.flushPass(ctx, flushManual).err
}

func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()
	ticker := m.clk.NewTicker(m.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flushPass(ctx, flushTimer)
		case <-m.kick:
			m.flushPass(ctx, flushKick)
		}
	}
}

func (m *Manager) handleConnectivity(ctx context.Context, online bool) {
	if online {
		m.logger.Info("connection restored; scheduling flush",
			logging.String(logging.FieldEventType, "delivery_online"),
			logging.Bool(logging.FieldOnline, true))
		m.kickFlush()
	} else {
		m.logger.Info("connection lost; requests will queue",
			logging.String(logging.FieldEventType, "delivery_offline"),
			logging.Bool(logging.FieldOnline, false))
	}
	// The monitor invokes subscribers synchronously; the ntfy call does
	// network I/O, so it cannot run on the callback goroutine.
	go func() {
		if err := m.notifier.NotifyConnectivityChanged(ctx, online); err != nil {
			m.logger.Warn("connectivity notification failed", logging.Error(err))
		}
	}()
}

// flushPass drains every eligible class, fanning out to at most
// m.workers concurrent class drains, and waits for them to finish.
func (m *Manager) flushPass(ctx context.Context, trigger flushTrigger) flushStats {
	if ctx.Err() != nil {
		return flushStats{err: ctx.Err()}
	}
	if !m.monitor.IsOnline() {
		m.logger.Debug("flush skipped while offline", logging.String("trigger", string(trigger)))
		return flushStats{}
	}
	classes, err := m.store.Classes(ctx)
	if err != nil {
		m.logger.Warn("flush could not enumerate queue classes", logging.Error(err))
		return flushStats{err: err}
	}
	if len(classes) == 0 {
		return flushStats{}
	}

	start := m.clk.Now()
	var (
		wg      sync.WaitGroup
		statsMu sync.Mutex
		stats   flushStats
	)
	sem := make(chan struct{}, m.workers)
	for _, class := range classes {
		if trigger == flushTimer && m.backoffBlocks(class, start) {
			continue
		}
		if !m.acquireClass(class) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(class string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer m.releaseClass(class)
			res := m.flushClass(ctx, class)
			statsMu.Lock()
			stats.delivered += res.delivered
			stats.dropped += res.dropped
			if stats.err == nil {
				stats.err = res.err
			}
			statsMu.Unlock()
		}(class)
	}
	wg.Wait()

	if stats.delivered > 0 || stats.dropped > 0 {
		elapsed := m.clk.Now().Sub(start)
		m.logger.Info("flush pass finished",
			logging.String(logging.FieldEventType, "flush_completed"),
			logging.String("trigger", string(trigger)),
			logging.Int("delivered", stats.delivered),
			logging.Int("dropped", stats.dropped),
			logging.Duration("duration", elapsed))
		if err := m.notifier.NotifyFlushCompleted(ctx, stats.delivered, stats.dropped, elapsed); err != nil {
			m.logger.Warn("flush notification failed", logging.Error(err))
		}
	}
	return stats
}

// flushClass drains one class oldest-first. A retryable failure stops
// the pass for the whole class so delivery order holds; the request
// keeps its place at the head.
func (m *Manager) flushClass(ctx context.Context, class string) flushStats {
	ctx = services.WithClass(ctx, class)
	ctx, _ = services.EnsureCorrelationID(ctx)
	var stats flushStats
	for {
		if ctx.Err() != nil {
			stats.err = ctx.Err()
			return stats
		}
		req, err := m.store.NextForClass(ctx, class)
		if err != nil {
			stats.err = err
			return stats
		}
		if req == nil {
			return stats
		}

		reqCtx := services.WithRequestID(ctx, req.ID)
		logger := logging.WithContext(reqCtx, m.logger)

		outcome, resp, attemptErr := m.attempt(reqCtx, req)
		switch outcome {
		case outcomeDelivered:
			if _, err := m.store.Remove(reqCtx, req.ID); err != nil {
				stats.err = err
				return stats
			}
			stats.delivered++
			m.resetBackoff(class)
			logger.Info("queued request delivered",
				logging.String(logging.FieldEventType, "request_delivered"),
				logging.String(logging.FieldMethod, req.Method),
				logging.String(logging.FieldURL, req.URL),
				logging.Int(logging.FieldStatusCode, resp.StatusCode),
				logging.Int(logging.FieldAttempt, req.RetryCount+1))
			m.emitDepth(reqCtx, class)

		case outcomeRetry:
			attempts := req.RetryCount + 1
			if attempts < req.MaxRetries {
				if err := m.store.RecordAttempt(reqCtx, req.ID, attempts, errText(attemptErr), m.clk.Now().UTC()); err != nil {
					stats.err = err
					return stats
				}
				m.bumpBackoff(class)
				logger.Debug("delivery attempt failed; request stays queued",
					logging.Int(logging.FieldAttempt, attempts),
					logging.Int("max_retries", req.MaxRetries),
					logging.Error(attemptErr))
				return stats
			}
			if _, err := m.store.Remove(reqCtx, req.ID); err != nil {
				stats.err = err
				return stats
			}
			stats.dropped++
			logging.WarnWithContext(logger, "request dropped after exhausting retries", "request_retries_exhausted",
				logging.String(logging.FieldMethod, req.Method),
				logging.String(logging.FieldURL, req.URL),
				logging.Int(logging.FieldAttempt, attempts),
				logging.Error(attemptErr))
			m.emitDrop(*req, DropReasonExhausted)
			if err := m.notifier.NotifyRetriesExhausted(reqCtx, req); err != nil {
				logger.Warn("drop notification failed", logging.Error(err))
			}
			m.emitDepth(reqCtx, class)

		case outcomeReject:
			if _, err := m.store.Remove(reqCtx, req.ID); err != nil {
				stats.err = err
				return stats
			}
			stats.dropped++
			reason := "rejected by upstream"
			if resp != nil {
				reason = fmt.Sprintf("rejected by upstream (%d)", resp.StatusCode)
			}
			logging.WarnWithContext(logger, "request dropped; upstream rejected it", "request_rejected",
				logging.String(logging.FieldMethod, req.Method),
				logging.String(logging.FieldURL, req.URL),
				logging.Error(attemptErr))
			m.emitDrop(*req, DropReasonRejected)
			if err := m.notifier.NotifyRequestDropped(reqCtx, req, reason); err != nil {
				logger.Warn("drop notification failed", logging.Error(err))
			}
			m.emitDepth(reqCtx, class)
		}
	}
}

type attemptOutcome int

const (
	outcomeDelivered attemptOutcome = iota
	outcomeRetry
	outcomeReject
)

// attempt performs one delivery and classifies the result. Any 2xx is
// delivered; transport failures and 5xx/429 responses are retryable;
// everything else is a terminal rejection.
func (m *Manager) attempt(ctx context.Context, req *queue.Request) (attemptOutcome, *Response, error) {
	resp, err := m.sender.Do(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return outcomeReject, nil, err
		}
		return outcomeRetry, nil, err
	}
	statusErr := services.FromHTTPStatus(resp.StatusCode, req.URL)
	switch {
	case statusErr == nil:
		return outcomeDelivered, resp, nil
	case services.Retryable(statusErr):
		return outcomeRetry, resp, statusErr
	default:
		return outcomeReject, resp, statusErr
	}
}

func (m *Manager) backoffBlocks(class string, now time.Time) bool {
	if m.backoffInitial <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.backoff[class]
	return ok && now.Before(state.nextAttempt)
}

func (m *Manager) bumpBackoff(class string) {
	if m.backoffInitial <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.backoff[class]
	if state.delay <= 0 {
		state.delay = m.backoffInitial
	} else {
		state.delay *= 2
		if m.backoffMax > 0 && state.delay > m.backoffMax {
			state.delay = m.backoffMax
		}
	}
	state.nextAttempt = m.clk.Now().Add(state.delay)
	m.backoff[class] = state
}

func (m *Manager) resetBackoff(class string) {
	if m.backoffInitial <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.backoff, class)
}

func (m *Manager) acquireClass(class string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[class] {
		return false
	}
	m.inflight[class] = true
	return true
}

func (m *Manager) releaseClass(class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, class)
}

// kickFlush nudges the scheduler without blocking; a pending kick
// already covers the caller.
func (m *Manager) kickFlush() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

const maxErrorText = 512

func errText(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	if len(text) > maxErrorText {
		text = text[:maxErrorText]
	}
	return text
}
