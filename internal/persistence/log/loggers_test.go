package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/economy"
)

// readJSONL decompresses one log file and unmarshals each line into out.
func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d: %v", len(out)+1, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func onlyFile(t *testing.T, dir, wantPrefix, wantSuffix string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, found %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, wantPrefix) || !strings.HasSuffix(name, wantSuffix) {
		t.Fatalf("unexpected file name %q", name)
	}
	return filepath.Join(dir, name)
}

func TestLedgerLogger(t *testing.T) {
	dataDir := t.TempDir()
	l := NewLedgerLogger(dataDir)

	l.AppendTransaction(economy.Transaction{
		ID: "TX00000001", Type: economy.TxnBuy, Item: "ORE", Quantity: 10,
		UnitPrice: 31.5, Total: 315, Tax: 15,
		BuyerID: "TR0001", SellerID: "M_ALPHA", MarketID: "M_ALPHA",
		GameHours: 1,
	})
	l.AppendTransaction(economy.Transaction{
		ID: "TX00000002", Type: economy.TxnSell, Item: "ORE", Quantity: 10,
		UnitPrice: 90, Total: 900,
		BuyerID: "M_BETA", SellerID: "TR0001", MarketID: "M_BETA",
		GameHours: 4, Suspicious: true,
	})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := onlyFile(t, filepath.Join(dataDir, "ledger"), "ledger-", ".jsonl.zst")
	lines := readJSONL(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["id"] != "TX00000001" || lines[0]["total"].(float64) != 315 {
		t.Fatalf("first line: %v", lines[0])
	}
	if lines[1]["suspicious"] != true {
		t.Fatalf("second line: %v", lines[1])
	}
}

func TestEventLogger(t *testing.T) {
	dataDir := t.TempDir()
	l := NewEventLogger(dataDir)

	if err := l.WriteEvent(protocol.Event{
		"type": "TRADE", "market_id": "M_ALPHA", "game_hours": 1.0,
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteEvent(protocol.Event{
		"type": "MILESTONE", "trader_id": "TR0001", "milestone": 500,
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := onlyFile(t, filepath.Join(dataDir, "events"), "events-", ".jsonl.zst")
	lines := readJSONL(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["type"] != "TRADE" || lines[1]["type"] != "MILESTONE" {
		t.Fatalf("lines: %v", lines)
	}
}

func TestWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "test")
	if err := w.Write(map[string]any{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Same hour, new writer: the file gains a second zstd frame rather
	// than being truncated.
	w = NewJSONLZstdWriter(dir, "test")
	if err := w.Write(map[string]any{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := onlyFile(t, dir, "test-", ".jsonl.zst")
	lines := readJSONL(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["n"].(float64) != 1 || lines[1]["n"].(float64) != 2 {
		t.Fatalf("lines: %v", lines)
	}
}
