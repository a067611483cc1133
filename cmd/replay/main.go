package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"starhaul.sim/internal/persistence/snapshot"
	"starhaul.sim/internal/sim/economy"
)

// Replays persisted ledger logs back through in-memory analytics. Handy for
// auditing a run offline: what moved, at what prices, and who came out ahead.
func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst (optional, prints header summary)")
		ledgerDir = flag.String("ledger", "", "dir containing ledger-*.jsonl.zst")
		window    = flag.Float64("window_hours", 0, "restrict analytics to the trailing window (0 = everything)")
		topN      = flag.Int("top", 10, "top traded items to print")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d economy=%s tick=%d seed=%d game_hours=%.2f markets=%d traders=%d contracts=%d ledger=%d\n",
			snap.Header.Version, snap.Header.EconomyID, snap.Header.Tick, snap.Seed, snap.GameHours,
			len(snap.Markets), len(snap.Traders), len(snap.Contracts), len(snap.Ledger))
	}

	if *ledgerDir == "" {
		return
	}

	files, err := listLedgerFiles(*ledgerDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ledger files:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no ledger files found in", *ledgerDir)
		os.Exit(1)
	}

	// Generous cap: the analytics should see the whole run, not just the
	// live server's retention window.
	ledger := economy.NewLedger(1 << 22)
	traders := map[string]bool{}
	var nowHours float64
	for _, path := range files {
		if err := loadFile(ledger, traders, path, &nowHours); err != nil {
			fmt.Fprintln(os.Stderr, "load:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("loaded %d transactions from %d files (latest at %.2f game hours)\n", ledger.Len(), len(files), nowHours)

	top := ledger.TopTradedItems(*topN, *window, nowHours)
	fmt.Println("top traded items:")
	for i, iv := range top {
		avg, _ := ledger.AveragePrice(iv.Item, *window, nowHours)
		trend, ok := ledger.PriceTrend(iv.Item, *window)
		trendStr := "n/a"
		if ok {
			trendStr = fmt.Sprintf("%+.1f%%", trend*100)
		}
		fmt.Printf("  %2d. %-24s units=%-8d avg=%-10.2f trend=%s\n", i+1, iv.Item, iv.Units, avg, trendStr)
	}

	ids := make([]string, 0, len(traders))
	for id := range traders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Println("trader P/L:")
	for _, id := range ids {
		fmt.Printf("  %-12s net=%+d\n", id, ledger.ProfitLoss(id, *window, nowHours))
	}
}

func listLedgerFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ledger-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func loadFile(ledger *economy.Ledger, traders map[string]bool, path string, nowHours *float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var t economy.Transaction
		if err := json.Unmarshal(line, &t); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ledger.Record(t)
		traders[t.TraderOf()] = true
		if t.GameHours > *nowHours {
			*nowHours = t.GameHours
		}
	}
	return sc.Err()
}
