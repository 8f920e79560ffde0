// cloak is a browser-faithful HTTP connection layer: every outbound
// connection reproduces a real client's TLS ClientHello, HTTP/2 SETTINGS,
// and header ordering, while a composite-keyed pool reuses connections per
// (authority, egress identity, protocol class).
//
// This binary is a demonstration driver for the library:
//  1. Load configuration (JSON file or defaults).
//  2. Load the proxy rotation (optional).
//  3. Initialise metrics and the structured logger.
//  4. Create a client under the configured emulation profile.
//  5. Fan the requested number of GETs out through a bounded worker pool.
//  6. Print final metrics, including pool eviction reasons.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/config"
	"github.com/cloakhttp/cloak/logger"
	"github.com/cloakhttp/cloak/metrics"
	"github.com/cloakhttp/cloak/profile"
	"github.com/cloakhttp/cloak/proxy"
	"github.com/cloakhttp/cloak/worker"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────────
	configFile := flag.String("config", "", "Path to JSON config file (optional; uses defaults if omitted)")
	targetURL := flag.String("url", "https://tls.peet.ws/api/all", "Target URL to fetch")
	requests := flag.Int("n", 4, "Number of requests to send")
	concurrency := flag.Int("c", 2, "Worker pool size")
	profileID := flag.String("profile", "", "Emulation profile (overrides config); one of: "+profileList())
	flag.Parse()

	// ── Configuration ──────────────────────────────────────────────────────
	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			logger.New("info").Fatalf("load config: %v", err)
		}
	}
	if *profileID != "" {
		cfg.ProfileID = *profileID
	}

	// ── Logger ─────────────────────────────────────────────────────────────
	log := logger.New(cfg.LogLevel)
	mainLog := logger.WithComponent(log, "main")
	mainLog.Infof("cloak starting with profile %s", cfg.ProfileID)

	// ── Proxy rotation ─────────────────────────────────────────────────────
	rot := &proxy.Rotator{}
	if cfg.ProxyFile != "" {
		if err := rot.LoadFile(cfg.ProxyFile); err != nil {
			mainLog.Fatalf("load proxies: %v", err)
		}
		mainLog.Infof("loaded %d proxies from %q", rot.Count(), cfg.ProxyFile)
	} else {
		mainLog.Info("no proxy file configured; connecting directly")
	}

	// ── Metrics + client ───────────────────────────────────────────────────
	m := metrics.New()
	cl, err := client.New(client.Options{
		Profile: cfg.ProfileID,
		Egress:  rot.Next(),
		ConnectorOptions: client.ConnectorOptions{
			Pool: client.PoolOptions{
				IdleTimeout: cfg.IdleTimeout.Std(),
				MaxPerKey:   cfg.MaxConnsPerKey,
				MaxTotal:    cfg.MaxConnsTotal,
				Observer:    m,
			},
			DialTimeout: cfg.DialTimeout.Std(),
			Logger:      log,
		},
		Timeout:              cfg.RequestTimeout.Std(),
		DisableDecompression: cfg.DisableDecompression,
		Logger:               log,
	})
	if err != nil {
		mainLog.Fatalf("create client: %v", err)
	}
	defer cl.Close()

	// ── Fan out ────────────────────────────────────────────────────────────
	wp := worker.New(*concurrency)
	wp.Start()
	for i := 0; i < *requests; i++ {
		wp.Submit(func() {
			m.IncrementRequests()
			resp, err := cl.Get(context.Background(), *targetURL)
			if err != nil {
				m.IncrementFailures()
				mainLog.Errorf("request error: %v", err)
				return
			}
			n, _ := io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			mainLog.Infof("%s -> %s (%d body bytes)", *targetURL, resp.Status, n)
		})
	}
	wp.Stop()

	// ── Final metrics ──────────────────────────────────────────────────────
	established, evicted, total, failed := m.Snapshot()
	mainLog.Infof("done – requests: %d | failed: %d | conns established: %d | evicted: %d | rps: %.1f",
		total, failed, established, evicted, m.RequestsPerSecond())
	for reason, n := range m.EvictionsByReason() {
		mainLog.Debugf("evictions[%s] = %d", reason, n)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func profileList() string {
	ids := profile.IDs()
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
