package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"starhaul.sim/internal/persistence/indexdb"
	persistlog "starhaul.sim/internal/persistence/log"
	"starhaul.sim/internal/persistence/snapshot"
	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
	"starhaul.sim/internal/sim/economy"
	"starhaul.sim/internal/sim/tuning"
	"starhaul.sim/internal/transport/observer"
	"starhaul.sim/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		economyID  = flag.String("economy", "economy_1", "economy id")
		seed       = flag.Int64("seed", 1337, "rng seed (used only when starting a fresh economy)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable sqlite indexing (transactions + events + snapshot metadata)")

		snapPath     = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest   = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		snapEvery    = flag.Duration("snapshot_interval", 5*time.Minute, "periodic snapshot interval (0 to disable)")
		aiTraders    = flag.Int("ai_traders", 4, "autonomous traders to spawn on a fresh economy")
		contractPath = flag.String("contracts", "", "seed contracts json (default: <configs>/contracts.json if present)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	econDir := filepath.Join(*dataDir, "economies", *economyID)
	_ = os.MkdirAll(econDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(econDir)
	}

	// Tuning is required for a fresh economy; a snapshot resume can run on
	// defaults if the file went missing.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional: read-model index backend (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(econDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index backend: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	eco := economy.New(economy.ConfigFromTuning(*economyID, *seed, tune), cats)
	for _, warn := range eco.Validate() {
		logger.Printf("config warning: %s", warn)
	}

	fresh := true
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.EconomyID != "" && snap.Header.EconomyID != *economyID {
			logger.Fatalf("snapshot economy id mismatch: flag=%s snap=%s", *economyID, snap.Header.EconomyID)
		}
		if err := eco.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		fresh = false
		logger.Printf("resumed from snapshot=%s tick=%d game_hours=%.2f", filepath.Base(snapshotToLoad), eco.Tick(), eco.GameHours())
	}

	if fresh {
		spawnAITraders(eco, *aiTraders)
		seedContracts(eco, *configDir, *contractPath, logger)
	}

	ctx, cancel := signalContext()
	defer cancel()

	ledgerLog := persistlog.NewLedgerLogger(econDir)
	defer ledgerLog.Close()
	eco.AddTransactionSink(ledgerLog)
	if idx != nil {
		eco.AddTransactionSink(idx)
	}

	eventLog := persistlog.NewEventLogger(econDir)
	defer eventLog.Close()
	events := make(chan protocol.Event, 4096)
	eco.AddListener(events)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				_ = eventLog.WriteEvent(ev)
				if idx != nil {
					idx.WriteEvent(ev)
				}
			}
		}
	}()

	// Snapshot writer.
	writeSnap := func(reqCtx context.Context) (uint64, error) {
		ctx2, cancel2 := context.WithTimeout(reqCtx, 5*time.Second)
		defer cancel2()
		snap, err := eco.RequestSnapshot(ctx2)
		if err != nil {
			return 0, err
		}
		path := filepath.Join(econDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return snap.Header.Tick, err
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap.Header.Tick, snap.GameHours, snap.Seed,
				len(snap.Markets), len(snap.Traders), len(snap.Contracts), len(snap.Ledger))
		}
		return snap.Header.Tick, nil
	}
	if *snapEvery > 0 {
		go func() {
			t := time.NewTicker(*snapEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if tick, err := writeSnap(ctx); err != nil {
						logger.Printf("snapshot write: %v", err)
					} else {
						logger.Printf("snapshot written tick=%d", tick)
					}
				}
			}
		}()
	}

	go eco.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *economyID, eco.Metrics())
	})

	enableAdminHTTP := envBool("SH_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SH_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				EconomyID string          `json:"economy_id"`
				Metrics   economy.Metrics `json:"metrics"`
			}{
				EconomyID: *economyID,
				Metrics:   eco.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			tick, err := writeSnap(r.Context())
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})

		obsSrv := observer.NewServer(eco, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (SH_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SH_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(eco, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

var spawnStrategies = []string{
	economy.StrategyBalanced,
	economy.StrategyAggressive,
	economy.StrategyConservative,
	economy.StrategySmuggler,
}

// spawnAITraders fills a fresh economy with autonomous haulers, cycling
// through the strategies so the market sees varied behavior from tick one.
func spawnAITraders(eco *economy.Economy, n int) {
	for i := 0; i < n; i++ {
		strategy := spawnStrategies[i%len(spawnStrategies)]
		eco.SpawnAITrader(fmt.Sprintf("hauler-%d", i+1), economy.AITraderOptions{
			Strategy:       strategy,
			CanManipulate:  strategy == economy.StrategyAggressive,
			HaulsContracts: strategy == economy.StrategyConservative || strategy == economy.StrategyBalanced,
		})
	}
}

func seedContracts(eco *economy.Economy, configDir, override string, logger *log.Logger) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = filepath.Join(configDir, "contracts.json")
		if _, err := os.Stat(path); err != nil {
			return
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Printf("seed contracts: %v", err)
		return
	}
	var defs []economy.Contract
	if err := json.Unmarshal(raw, &defs); err != nil {
		logger.Printf("seed contracts: %s: %v", path, err)
		return
	}
	for _, c := range defs {
		eco.PostContract(c)
	}
	logger.Printf("seeded %d contracts from %s", len(defs), filepath.Base(path))
}

func writeMetrics(rw http.ResponseWriter, id string, m economy.Metrics) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP starhaul_economy_tick Current economy tick.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_tick gauge\n")
	fmt.Fprintf(rw, "starhaul_economy_tick{economy=%q} %d\n", id, m.Tick)

	fmt.Fprintf(rw, "# HELP starhaul_economy_game_hours Elapsed simulated hours.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_game_hours gauge\n")
	fmt.Fprintf(rw, "starhaul_economy_game_hours{economy=%q} %.3f\n", id, m.GameHours)

	fmt.Fprintf(rw, "# HELP starhaul_economy_traders Registered traders.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_traders gauge\n")
	fmt.Fprintf(rw, "starhaul_economy_traders{economy=%q,kind=%q} %d\n", id, "all", m.Traders)
	fmt.Fprintf(rw, "starhaul_economy_traders{economy=%q,kind=%q} %d\n", id, "ai", m.AITraders)

	fmt.Fprintf(rw, "# HELP starhaul_economy_sessions Connected sessions.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_sessions gauge\n")
	fmt.Fprintf(rw, "starhaul_economy_sessions{economy=%q} %d\n", id, m.Sessions)

	fmt.Fprintf(rw, "# HELP starhaul_economy_trades_total Settled trades since start.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_trades_total counter\n")
	fmt.Fprintf(rw, "starhaul_economy_trades_total{economy=%q} %d\n", id, m.Trades)

	fmt.Fprintf(rw, "# HELP starhaul_economy_units_traded_total Units moved across all trades.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_units_traded_total counter\n")
	fmt.Fprintf(rw, "starhaul_economy_units_traded_total{economy=%q} %d\n", id, m.UnitsTraded)

	fmt.Fprintf(rw, "# HELP starhaul_economy_credits_moved_total Credits settled across all trades.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_credits_moved_total counter\n")
	fmt.Fprintf(rw, "starhaul_economy_credits_moved_total{economy=%q} %d\n", id, m.CreditsMoved)

	fmt.Fprintf(rw, "# HELP starhaul_economy_contracts_total Resolved contracts by outcome.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_contracts_total counter\n")
	fmt.Fprintf(rw, "starhaul_economy_contracts_total{economy=%q,outcome=%q} %d\n", id, "completed", m.ContractsCompleted)
	fmt.Fprintf(rw, "starhaul_economy_contracts_total{economy=%q,outcome=%q} %d\n", id, "failed", m.ContractsFailed)

	fmt.Fprintf(rw, "# HELP starhaul_economy_ledger_size Transactions held in the in-memory ledger.\n")
	fmt.Fprintf(rw, "# TYPE starhaul_economy_ledger_size gauge\n")
	fmt.Fprintf(rw, "starhaul_economy_ledger_size{economy=%q} %d\n", id, m.LedgerSize)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(econDir string) string {
	dir := filepath.Join(econDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
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

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
