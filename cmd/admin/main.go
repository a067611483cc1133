package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Operator tooling for a running (or stopped) economy: list data dirs, query
// the sqlite index, hit the loopback admin endpoints.
func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	economyID := fs.String("economy", "", "economy id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "economies")
	if *economyID != "" {
		base = filepath.Join(base, *economyID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}
