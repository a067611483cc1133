package economy

import (
	"encoding/json"

	"github.com/google/uuid"

	"starhaul.sim/internal/protocol"
)

// Session binds one connected client to a trader. Frames written to Out are
// already encoded; the transport only has to put them on the wire. A full
// queue drops the session's frames rather than stalling the simulation.
type Session struct {
	ID       string
	TraderID string
	Out      chan []byte
}

type joinRequest struct {
	name     string
	maxQueue int
	reply    chan joinReply
}

type joinReply struct {
	session *Session
	err     error
}

// CommandEnvelope carries one client command into the economy loop.
type CommandEnvelope struct {
	TraderID string
	Cmd      protocol.CommandMsg
}

// Join creates a trader and session for a connecting client. Safe to call
// from any goroutine while the loop runs; blocks until the loop answers or
// shuts down.
func (e *Economy) Join(name string, maxQueue int) (*Session, error) {
	req := joinRequest{name: name, maxQueue: maxQueue, reply: make(chan joinReply, 1)}
	select {
	case e.joinCh <- req:
	case <-e.stopCh:
		return nil, errf(protocol.ErrInternal, "economy stopped")
	}
	select {
	case rep := <-req.reply:
		return rep.session, rep.err
	case <-e.stopCh:
		return nil, errf(protocol.ErrInternal, "economy stopped")
	}
}

// Leave detaches a session's trader. Safe to call from any goroutine.
func (e *Economy) Leave(traderID string) {
	select {
	case e.leaveCh <- traderID:
	case <-e.stopCh:
	}
}

// EnqueueCommand hands a command to the loop without blocking; returns
// false when the inbox is full.
func (e *Economy) EnqueueCommand(env CommandEnvelope) bool {
	select {
	case e.inbox <- env:
		return true
	default:
		return false
	}
}

func (e *Economy) handleJoin(req joinRequest) {
	tr := e.CreateTrader(req.name)
	// Every economy starts traders off knowing the open markets; gated ones
	// have to be discovered.
	for _, id := range e.marketOrder {
		if e.markets[id].def.MinReputation <= 0 && !e.markets[id].def.IsBlackMarket() {
			tr.Discover(id)
		}
	}
	queue := req.maxQueue
	if queue <= 0 {
		queue = 64
	}
	s := &Session{
		ID:       uuid.NewString(),
		TraderID: tr.ID,
		Out:      make(chan []byte, queue),
	}
	e.sessions[tr.ID] = s
	req.reply <- joinReply{session: s}
}

func (e *Economy) handleLeave(traderID string) {
	if s := e.sessions[traderID]; s != nil {
		close(s.Out)
		delete(e.sessions, traderID)
	}
	e.RemoveTrader(traderID)
}

// publishEvent queues an event for the end-of-step flush.
func (e *Economy) publishEvent(ev protocol.Event) {
	e.pendingEvents = append(e.pendingEvents, ev)
}

// flushEvents pushes the step's events to every session and listener.
// Non-blocking everywhere: a slow consumer loses events, never slows the
// loop.
func (e *Economy) flushEvents() {
	if len(e.pendingEvents) == 0 {
		return
	}
	for _, ev := range e.pendingEvents {
		ev["game_hours"] = e.gameHours

		for _, ch := range e.listeners {
			select {
			case ch <- ev:
			default:
			}
		}

		frame, err := json.Marshal(protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Event:           ev,
		})
		if err != nil {
			continue
		}
		for _, s := range e.sessions {
			select {
			case s.Out <- frame:
			default:
			}
		}
	}
	e.pendingEvents = e.pendingEvents[:0]
}

// sendResult delivers a RESULT frame to one session, dropping it when the
// queue is full.
func (e *Economy) sendResult(traderID string, res protocol.ResultMsg) {
	s := e.sessions[traderID]
	if s == nil {
		return
	}
	frame, err := json.Marshal(res)
	if err != nil {
		return
	}
	select {
	case s.Out <- frame:
	default:
	}
}
