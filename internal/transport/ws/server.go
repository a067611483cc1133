package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/economy"
)

type Server struct {
	eco *economy.Economy
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(eco *economy.Economy, logger *log.Logger) *Server {
	s := &Server{
		eco: eco,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: drains the session queue onto the wire.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.Out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeCommand {
				continue
			}
			var cmd protocol.CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			if cmd.ProtocolVersion != protocol.Version {
				continue
			}
			if !s.eco.EnqueueCommand(economy.CommandEnvelope{TraderID: sess.TraderID, Cmd: cmd}) {
				s.log.Printf("inbox full, dropping command %s from %s", cmd.ID, sess.TraderID)
			}
		}

		s.eco.Leave(sess.TraderID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *economy.Session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	if hello.TraderName == "" {
		hello.TraderName = "trader"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 256 {
		maxQ = 256
	}

	sess, err := s.eco.Join(hello.TraderName, maxQ)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "join failed"), time.Now().Add(time.Second))
		return nil
	}

	cfg := s.eco.Config()
	cats := s.eco.Catalogs()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.ID,
		TraderID:        sess.TraderID,
		EconomyParams: protocol.EconomyParams{
			UpdateIntervalMs: int(cfg.UpdateInterval.Milliseconds()),
			TimeScale:        cfg.TimeScale,
			Markets:          len(cats.Markets.Palette),
			Seed:             cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			ItemsDigest:   cats.Items.Digest,
			MarketsDigest: cats.Markets.Digest,
			EventsDigest:  cats.Events.Digest,
			ItemCount:     len(cats.Items.Palette),
			MarketCount:   len(cats.Markets.Palette),
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.eco.Leave(sess.TraderID)
		return nil
	}
	return sess
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
