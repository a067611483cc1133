package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd runs canned read-only queries against the server's sqlite index.
//
//	admin db -economy economy_1 snapshots
//	admin db -economy economy_1 txns -item IRON_ORE -limit 10
//	admin db -economy economy_1 net -trader TR0001
//	admin db -economy economy_1 events -kind MANIPULATION
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	economyID := fs.String("economy", "", "economy id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	item := fs.String("item", "", "item filter (txns)")
	market := fs.String("market", "", "market filter (txns)")
	trader := fs.String("trader", "", "trader id (net, txns)")
	kind := fs.String("kind", "", "event kind filter (events)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*economyID) == "" {
			fmt.Fprintln(os.Stderr, "missing -economy or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "economies", *economyID, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		querySnapshots(db, *limit)
	case "txns":
		queryTxns(db, *item, *market, *trader, *limit)
	case "net":
		if strings.TrimSpace(*trader) == "" {
			fmt.Fprintln(os.Stderr, "missing -trader")
			os.Exit(2)
		}
		queryNet(db, *trader)
	case "events":
		queryEvents(db, *kind, *limit)
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (snapshots|txns|net|events)\n", q)
		os.Exit(2)
	}
}

func querySnapshots(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT tick, game_hours, path, markets, traders, contracts, ledger
		FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var hours float64
		var path string
		var markets, traders, contracts, ledger int
		if err := rows.Scan(&tick, &hours, &path, &markets, &traders, &contracts, &ledger); err != nil {
			fatal(err)
		}
		fmt.Printf("tick=%-10d hours=%-10.2f markets=%d traders=%d contracts=%d ledger=%d %s\n",
			tick, hours, markets, traders, contracts, ledger, path)
	}
	if err := rows.Err(); err != nil {
		fatal(err)
	}
}

func queryTxns(db *sql.DB, item, market, trader string, limit int) {
	where := []string{"1=1"}
	var binds []any
	if item != "" {
		where = append(where, "item = ?")
		binds = append(binds, item)
	}
	if market != "" {
		where = append(where, "market_id = ?")
		binds = append(binds, market)
	}
	if trader != "" {
		where = append(where, "(buyer_id = ? OR seller_id = ?)")
		binds = append(binds, trader, trader)
	}
	binds = append(binds, limit)

	rows, err := db.Query(`SELECT id, type, item, quantity, unit_price, total, market_id, game_hours, suspicious
		FROM transactions WHERE `+strings.Join(where, " AND ")+`
		ORDER BY game_hours DESC LIMIT ?`, binds...)
	if err != nil {
		fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, typ, itemID, marketID string
		var qty, suspicious int
		var unitPrice, hours float64
		var total int64
		if err := rows.Scan(&id, &typ, &itemID, &qty, &unitPrice, &total, &marketID, &hours, &suspicious); err != nil {
			fatal(err)
		}
		flag := ""
		if suspicious != 0 {
			flag = " SUSPICIOUS"
		}
		fmt.Printf("%s %-4s %-24s qty=%-6d unit=%-10.2f total=%-10d %s hours=%.2f%s\n",
			id, typ, itemID, qty, unitPrice, total, marketID, hours, flag)
	}
	if err := rows.Err(); err != nil {
		fatal(err)
	}
}

func queryNet(db *sql.DB, trader string) {
	var sold, bought sql.NullInt64
	err := db.QueryRow(`SELECT
		(SELECT COALESCE(SUM(total),0) FROM transactions WHERE type='SELL' AND seller_id = ?),
		(SELECT COALESCE(SUM(total),0) FROM transactions WHERE type='BUY' AND buyer_id = ?)`,
		trader, trader).Scan(&sold, &bought)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("trader=%s sold=%d bought=%d net=%+d\n", trader, sold.Int64, bought.Int64, sold.Int64-bought.Int64)
}

func queryEvents(db *sql.DB, kind string, limit int) {
	where := "1=1"
	var binds []any
	if kind != "" {
		where = "kind = ?"
		binds = append(binds, kind)
	}
	binds = append(binds, limit)

	rows, err := db.Query(`SELECT seq, kind, COALESCE(market_id,''), COALESCE(trader_id,''), game_hours
		FROM events WHERE `+where+` ORDER BY seq DESC LIMIT ?`, binds...)
	if err != nil {
		fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var seq int64
		var k, marketID, traderID string
		var hours float64
		if err := rows.Scan(&seq, &k, &marketID, &traderID, &hours); err != nil {
			fatal(err)
		}
		fmt.Printf("%-8d %-24s market=%-20s trader=%-10s hours=%.2f\n", seq, k, marketID, traderID, hours)
	}
	if err := rows.Err(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "query:", err)
	os.Exit(1)
}
