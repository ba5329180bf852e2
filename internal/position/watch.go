package position

import (
	"context"
	"fmt"

	"github.com/couchcryptid/service-match/internal/domain"
)

// StartWatching subscribes to continuous device updates until ctx ends or
// StopWatching is called. Each reading is cached and broadcast; reading
// errors go to error listeners and the watch continues. Calling it while a
// watch is active is a no-op.
func (p *Provider) StartWatching(ctx context.Context) error {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()

	if p.watchDone != nil {
		select {
		case <-p.watchDone:
			// Previous watch ended on its own; start a new one.
		default:
			return nil
		}
	}

	wctx, cancel := context.WithCancel(ctx)
	readings, err := p.device.Watch(wctx, p.opts)
	if err != nil {
		cancel()
		return fmt.Errorf("start watch: %w", err)
	}

	done := make(chan struct{})
	p.watchCancel, p.watchDone = cancel, done
	p.metrics.PositionWatchActive.Set(1)
	p.logger.Info("position watch started", "high_accuracy", p.opts.HighAccuracy)

	go p.watch(wctx, readings, done)
	return nil
}

// StopWatching ends the active watch and waits for it to drain. No listener
// is invoked by the watch after StopWatching returns. It must not be called
// from a listener.
func (p *Provider) StopWatching() {
	p.watchMu.Lock()
	cancel, done := p.watchCancel, p.watchDone
	p.watchCancel, p.watchDone = nil, nil
	p.watchMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("position watch stopped")
}

// Watching reports whether a watch is currently running.
func (p *Provider) Watching() bool {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.watchDone == nil {
		return false
	}
	select {
	case <-p.watchDone:
		return false
	default:
		return true
	}
}

// WatchDone returns a channel closed when the current watch ends, whether it
// was stopped or the device closed it. Without a watch it is already closed.
func (p *Provider) WatchDone() <-chan struct{} {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.watchDone == nil {
		return closedChan
	}
	return p.watchDone
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (p *Provider) watch(ctx context.Context, readings <-chan Reading, done chan struct{}) {
	defer close(done)
	defer p.metrics.PositionWatchActive.Set(0)

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				p.logger.Info("device closed position watch")
				return
			}
			p.handleReading(ctx, r)
		}
	}
}

func (p *Provider) handleReading(ctx context.Context, r Reading) {
	if ctx.Err() != nil {
		return
	}
	if r.Err == nil {
		r.Err = r.Coordinates.Validate()
	}
	if r.Err != nil {
		p.logger.Warn("position watch reading failed", "error", r.Err)
		p.dispatchError(ctx, r.Err)
		return
	}

	loc := p.locate(ctx, r.Coordinates, domain.SourceDevice)
	if err := p.commit(ctx, loc); err == nil {
		p.metrics.PositionRequests.WithLabelValues("device").Inc()
	}
}

func (p *Provider) dispatchError(ctx context.Context, err error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	p.errs.emit(err)
}
