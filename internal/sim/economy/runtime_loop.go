package economy

import (
	"context"
	"time"
)

// Run drives the economy loop: timed simulation steps interleaved with
// joins, leaves and client commands, all on this one goroutine. Returns
// when ctx is cancelled or Stop is called.
func (e *Economy) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return
		case <-e.stopCh:
			return
		case req := <-e.joinCh:
			e.handleJoin(req)
			e.flushEvents()
		case traderID := <-e.leaveCh:
			e.handleLeave(traderID)
			e.flushEvents()
		case env := <-e.inbox:
			e.applyCommand(env)
			e.flushEvents()
		case req := <-e.snapCh:
			req.reply <- e.ExportSnapshot()
		case <-ticker.C:
			e.step()
		}
	}
}

// Stop shuts the loop down. Idempotent, safe from any goroutine.
func (e *Economy) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// step advances the simulation by one update interval of game time.
func (e *Economy) step() {
	e.tick++
	e.gameHours += e.deltaHoursPerTick()

	delta := e.deltaHoursPerTick()
	e.updateMarkets(delta)
	e.tickContracts()
	e.tickAITraders()

	e.publishMetrics()
	e.flushEvents()
}

// deltaHoursPerTick converts one real update interval into game hours.
func (e *Economy) deltaHoursPerTick() float64 {
	return e.cfg.UpdateInterval.Seconds() * e.cfg.TimeScale / 3600.0
}

// StepOnce runs exactly one simulation step synchronously. Test and replay
// entry point; never call while Run is active.
func (e *Economy) StepOnce() {
	e.drainInbox()
	e.step()
}

// AdvanceHours steps the simulation until at least hours of game time have
// passed.
func (e *Economy) AdvanceHours(hours float64) {
	target := e.gameHours + hours
	for e.gameHours < target {
		e.StepOnce()
	}
}

func (e *Economy) drainInbox() {
	for {
		select {
		case req := <-e.joinCh:
			e.handleJoin(req)
		case traderID := <-e.leaveCh:
			e.handleLeave(traderID)
		case env := <-e.inbox:
			e.applyCommand(env)
		default:
			return
		}
	}
}
