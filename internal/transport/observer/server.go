package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"starhaul.sim/internal/observerproto"
	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/economy"
)

// Server fans the economy's event stream out to read-only dashboard
// connections. One listener channel on the economy feeds all subscribers;
// slow subscribers miss events rather than backing up the loop.
type Server struct {
	eco *economy.Economy
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]*subscriber
}

type subscriber struct {
	out     chan []byte
	kinds   map[string]bool // nil = all
	markets map[string]bool // nil = all
}

// NewServer registers the fan-out listener on the economy. Call before the
// economy's Run.
func NewServer(eco *economy.Economy, logger *log.Logger) *Server {
	s := &Server{
		eco: eco,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[uint64]*subscriber{},
	}
	events := make(chan protocol.Event, 4096)
	eco.AddListener(events)
	go s.fanout(events)
	return s
}

func (s *Server) fanout(events <-chan protocol.Event) {
	for ev := range events {
		frame, err := json.Marshal(observerproto.EventMsg{
			Type:            "EVENT",
			ProtocolVersion: observerproto.Version,
			Event:           ev,
		})
		if err != nil {
			continue
		}
		kind, _ := ev["type"].(string)
		market, _ := ev["market_id"].(string)

		s.mu.Lock()
		for _, sub := range s.subs {
			if sub.kinds != nil && !sub.kinds[kind] {
				continue
			}
			if sub.markets != nil && market != "" && !sub.markets[market] {
				continue
			}
			select {
			case sub.out <- frame:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.eco.Config()
		cats := s.eco.Catalogs()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			EconomyID:       cfg.ID,
			EconomyParams: observerproto.EconomyParams{
				UpdateIntervalMs: int(cfg.UpdateInterval.Milliseconds()),
				TimeScale:        cfg.TimeScale,
				Seed:             cfg.Seed,
			},
			Metrics: s.eco.Metrics(),
		}
		for _, id := range cats.Markets.Palette {
			def := cats.Markets.Defs[id]
			resp.Markets = append(resp.Markets, observerproto.MarketSummary{
				ID:         id,
				Name:       def.Name,
				MarketType: def.MarketType,
				FactionID:  def.FactionID,
				Items:      len(def.Inventory),
			})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id := s.nextID.Add(1)
		out := make(chan []byte, 1024)
		s.setSubscription(id, out, sub)
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var update observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &update); err != nil {
				continue
			}
			if update.Type != "SUBSCRIBE" || update.ProtocolVersion != observerproto.Version {
				continue
			}
			s.setSubscription(id, out, update)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) setSubscription(id uint64, out chan []byte, sub observerproto.SubscribeMsg) {
	entry := &subscriber{out: out}
	if len(sub.Kinds) > 0 {
		entry.kinds = map[string]bool{}
		for _, k := range sub.Kinds {
			entry.kinds[k] = true
		}
	}
	if len(sub.Markets) > 0 {
		entry.markets = map[string]bool{}
		for _, m := range sub.Markets {
			entry.markets[m] = true
		}
	}
	s.mu.Lock()
	s.subs[id] = entry
	s.mu.Unlock()
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
