package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// The admin endpoints are loopback-gated on the economy server, so the
// default target is the local process. STARHAUL_ADMIN_URL overrides it for
// tunneled setups.
const defaultAdminURL = "http://127.0.0.1:8080"

func adminURLFlag(fs *flag.FlagSet) *string {
	def := defaultAdminURL
	if v := os.Getenv("STARHAUL_ADMIN_URL"); v != "" {
		def = v
	}
	return fs.String("url", def, "economy server base url")
}

func adminCall(method, base, path string, timeout time.Duration) {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	base := adminURLFlag(fs)
	_ = fs.Parse(args)
	adminCall(http.MethodGet, *base, "/admin/v1/state", 5*time.Second)
}

// snapshotCmd asks the running economy to capture and persist a snapshot.
// The longer timeout covers the loop round trip plus the disk write.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	base := adminURLFlag(fs)
	_ = fs.Parse(args)
	adminCall(http.MethodPost, *base, "/admin/v1/snapshot", 10*time.Second)
}
