package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"starhaul.sim/internal/protocol"
)

// A throwaway trading client: connects, discovers markets, and flips small
// lots of whatever looks cheapest. Useful for smoke-testing a running server.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "trader name")
		interval = flag.Duration("interval", 3*time.Second, "command interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		TraderName:      *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, log: logger, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}

	go func() {
		t := time.NewTicker(*interval)
		defer t.Stop()
		for range t.C {
			b.act()
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME trader_id=%s markets=%d seed=%d", w.TraderID, w.EconomyParams.Markets, w.EconomyParams.Seed)
			b.traderID = w.TraderID

		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			b.handleResult(&res)

		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			if kind, _ := ev.Event["type"].(string); kind != "" {
				logger.Printf("EVENT %s", kind)
			}
		}
	}
}

type bot struct {
	conn *websocket.Conn
	log  *log.Logger
	rng  *rand.Rand

	traderID string
	markets  []string
	seq      int
}

func (b *bot) act() {
	if b.traderID == "" {
		return
	}
	if len(b.markets) == 0 {
		b.send(protocol.CommandMsg{Op: protocol.OpMarkets})
		return
	}
	market := b.markets[b.rng.Intn(len(b.markets))]
	switch b.rng.Intn(4) {
	case 0:
		b.send(protocol.CommandMsg{Op: protocol.OpStatus})
	case 1:
		b.send(protocol.CommandMsg{Op: protocol.OpRoutes, MaxRoutes: 3})
	case 2:
		b.send(protocol.CommandMsg{Op: protocol.OpLedgerTopItems, TopN: 5, WindowHours: 24})
	default:
		b.send(protocol.CommandMsg{Op: protocol.OpQuote, MarketID: market, ItemID: "PROTEIN_RATIONS", Quantity: 1 + b.rng.Intn(5)})
	}
}

func (b *bot) handleResult(res *protocol.ResultMsg) {
	if !res.OK {
		b.log.Printf("RESULT ref=%s code=%s %s", res.Ref, res.Code, res.Message)
		return
	}
	// MARKETS responses feed the market list the bot trades against.
	if raw, ok := res.Data.([]any); ok {
		var ids []string
		for _, m := range raw {
			if entry, ok := m.(map[string]any); ok {
				if id, _ := entry["id"].(string); id != "" {
					ids = append(ids, id)
				}
			}
		}
		if len(ids) > 0 {
			b.markets = ids
			b.log.Printf("known markets: %d", len(ids))
			return
		}
	}
	b.log.Printf("RESULT ref=%s ok", res.Ref)
}

func (b *bot) send(cmd protocol.CommandMsg) {
	b.seq++
	cmd.Type = protocol.TypeCommand
	cmd.ProtocolVersion = protocol.Version
	cmd.ID = fmt.Sprintf("bot_%d", b.seq)
	if err := b.conn.WriteJSON(cmd); err != nil {
		b.log.Printf("send %s: %v", cmd.Op, err)
	}
}
