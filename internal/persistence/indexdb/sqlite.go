package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
	"starhaul.sim/internal/sim/economy"
	"starhaul.sim/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over the economy's JSONL logs:
// transactions, events and snapshot metadata. Writes are queued and batched
// on a dedicated goroutine so the simulation loop never waits on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTxn reqKind = iota + 1
	reqEvent
	reqSnapshot
)

type req struct {
	kind reqKind

	txn      economy.Transaction
	event    protocol.Event
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick      uint64
	GameHours float64
	Path      string
	Seed      int64
	Markets   int
	Traders   int
	Contracts int
	Ledger    int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: AI trade bursts must not stall the economy loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			item TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price REAL NOT NULL,
			total INTEGER NOT NULL,
			tax INTEGER NOT NULL,
			buyer_id TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			market_id TEXT NOT NULL,
			game_hours REAL NOT NULL,
			supply_level REAL NOT NULL,
			demand_level REAL NOT NULL,
			contraband INTEGER NOT NULL,
			suspicious INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_txn_item_hours ON transactions(item, game_hours);`,
		`CREATE INDEX IF NOT EXISTS idx_txn_market_hours ON transactions(market_id, game_hours);`,
		`CREATE INDEX IF NOT EXISTS idx_txn_buyer ON transactions(buyer_id, game_hours);`,
		`CREATE INDEX IF NOT EXISTS idx_txn_seller ON transactions(seller_id, game_hours);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			market_id TEXT,
			trader_id TEXT,
			game_hours REAL NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_hours ON events(kind, game_hours);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			game_hours REAL NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			markets INTEGER NOT NULL,
			traders INTEGER NOT NULL,
			contracts INTEGER NOT NULL,
			ledger INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// AppendTransaction satisfies economy.TransactionSink. Non-blocking: if the
// indexer falls behind the JSONL logs remain the source of truth.
func (s *SQLiteIndex) AppendTransaction(t economy.Transaction) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTxn, txn: t}:
	default:
	}
}

// WriteEvent indexes one economy event.
func (s *SQLiteIndex) WriteEvent(ev protocol.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
	}
}

// RecordSnapshot indexes the metadata of a written snapshot file.
func (s *SQLiteIndex) RecordSnapshot(path string, tick uint64, gameHours float64, seed int64, markets, traders, contracts, ledger int) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:      tick,
		GameHours: gameHours,
		Path:      path,
		Seed:      seed,
		Markets:   markets,
		Traders:   traders,
		Contracts: contracts,
		Ledger:    ledger,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// UpsertCatalogs stores the loaded catalog JSON and digests so offline
// analysis of the index never needs the config directory.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("items", filepath.Join(configDir, "items.json"))
		read("markets", filepath.Join(configDir, "markets.json"))
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b := raw["items"]; len(b) > 0 {
		rows = append(rows, kv{name: "items", digest: cats.Items.Digest, json: b})
	}
	if b := raw["markets"]; len(b) > 0 {
		rows = append(rows, kv{name: "markets", digest: cats.Markets.Digest, json: b})
	}
	{
		// Canonicalize event templates to stable JSON for easier querying.
		evs := make([]catalogs.EventTemplate, 0, len(cats.Events.ByID))
		for _, id := range sortedEventIDs(cats) {
			evs = append(evs, cats.Events.ByID[id])
		}
		if b, _ := json.Marshal(evs); len(b) > 0 {
			rows = append(rows, kv{name: "events", digest: cats.Events.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func sortedEventIDs(cats *catalogs.Catalogs) []string {
	ids := make([]string, 0, len(cats.Events.ByID))
	for id := range cats.Events.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTxn, _ := s.db.Prepare(`INSERT OR REPLACE INTO transactions(
		id,type,item,quantity,unit_price,total,tax,buyer_id,seller_id,market_id,
		game_hours,supply_level,demand_level,contraband,suspicious,raw_json
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT INTO events(kind,market_id,trader_id,game_hours,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,game_hours,path,seed,markets,traders,contracts,ledger) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTxn != nil {
			_ = insertTxn.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Commit on batch size, age, or an idle queue. The idle case keeps the
	// single connection free for readers between trade bursts.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || len(s.ch) == 0 || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTxn:
			t := r.txn
			raw, _ := json.Marshal(t)
			if insertTxn != nil {
				if _, err := tx.Stmt(insertTxn).Exec(
					t.ID, t.Type, t.Item, t.Quantity, t.UnitPrice, t.Total, t.Tax,
					t.BuyerID, t.SellerID, t.MarketID,
					t.GameHours, t.SupplyLevel, t.DemandLevel,
					boolInt(t.Contraband), boolInt(t.Suspicious),
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqEvent:
			ev := r.event
			raw, _ := json.Marshal(ev)
			if insertEvent != nil {
				if _, err := tx.Stmt(insertEvent).Exec(
					str(ev["type"]), str(ev["market_id"]), str(ev["trader_id"]),
					num(ev["game_hours"]), string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick), sn.GameHours, sn.Path, sn.Seed,
					sn.Markets, sn.Traders, sn.Contracts, sn.Ledger,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

// Flush blocks until the queue drains and commits. Test helper.
func (s *SQLiteIndex) Flush() {
	for len(s.ch) > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	// One more round trip so the in-flight request lands and commits.
	time.Sleep(50 * time.Millisecond)
}

// TransactionCount reports indexed transactions for an item; empty item
// counts everything.
func (s *SQLiteIndex) TransactionCount(item string) (int, error) {
	var n int
	var err error
	if item == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE item=?`, item).Scan(&n)
	}
	return n, err
}

// TraderNet sums a trader's indexed flows: sells minus buys, in credits.
func (s *SQLiteIndex) TraderNet(traderID string) (int64, error) {
	var sold, bought sql.NullInt64
	if err := s.db.QueryRow(`SELECT SUM(total) FROM transactions WHERE seller_id=?`, traderID).Scan(&sold); err != nil {
		return 0, err
	}
	if err := s.db.QueryRow(`SELECT SUM(total) FROM transactions WHERE buyer_id=?`, traderID).Scan(&bought); err != nil {
		return 0, err
	}
	return sold.Int64 - bought.Int64, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}
