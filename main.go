package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/croftbay/pgscout/internal/audit"
	"github.com/croftbay/pgscout/internal/auth"
	"github.com/croftbay/pgscout/internal/config"
	"github.com/croftbay/pgscout/internal/dispatch"
	"github.com/croftbay/pgscout/internal/httpserv"
	"github.com/croftbay/pgscout/internal/inspect"
	"github.com/croftbay/pgscout/internal/pgpool"
	"github.com/croftbay/pgscout/internal/toolsvc"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "probe":
		cmdProbe(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "version":
		fmt.Printf("pgscout %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pgscout — Postgres inspection tool service

Usage:
  pgscout serve [--config config.toml] [--addr :8010]
  pgscout probe [--endpoint http://localhost:8010/mcp]
  pgscout token [--config config.toml] --subject NAME
  pgscout version
  pgscout help

Commands:
  serve     Start the tool server
  probe     Connect to a running server and exercise its tools
  token     Mint an access token for the tool endpoint
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgpool.New(ctx, pgpool.Config{
		DSN:            cfg.DSN(),
		MinConns:       cfg.Pool.MinConns,
		MaxConns:       cfg.Pool.MaxConns,
		AcquireTimeout: time.Duration(cfg.Pool.AcquireTimeoutSec) * time.Second,
		QueryTimeout:   time.Duration(cfg.Pool.QueryTimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		log.Fatalf("opening connection pool: %v", err)
	}
	defer pool.Close()

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			log.Fatalf("opening audit store: %v", err)
		}
		defer auditStore.Close()
	}

	reg := toolsvc.NewRegistry(inspect.New(pool), auditStore)
	mcpServer := toolsvc.NewMCPServer(reg)

	srv := httpserv.New(httpserv.Config{
		Addr:        cfg.Server.Addr,
		BasePath:    cfg.Server.BasePath,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeoutMin) * time.Minute,
		MCPServer:   mcpServer,
		Prober:      pool,
		Auth:        auth.New(cfg.Auth.Secret, cfg.Auth.TokenExpiryMin),
		Logger:      logger,
	})

	logger.Info("pgscout starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Name,
		"audit", cfg.Audit.Enabled)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Fatalf("shutdown: %v", err)
		}
	}
}

// cmdProbe is a smoke check against a live server: handshake, list tools,
// call the two cheapest ones.
func cmdProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	endpoint := fs.String("endpoint", "http://localhost:8010/mcp", "tool endpoint URL")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	remote := dispatch.NewRemote(*endpoint)
	defer remote.Close()

	tools, err := remote.Tools(ctx)
	if err != nil {
		log.Fatalf("listing tools: %v", err)
	}
	fmt.Printf("%d tools:\n", len(tools))
	for _, d := range tools {
		fmt.Printf("  %s — %s\n", d.Name, d.Description)
	}

	out, err := remote.Invoke(ctx, "list_tables", map[string]any{})
	if err != nil {
		log.Fatalf("list_tables: %v", err)
	}
	fmt.Printf("\nlist_tables:\n%s\n", out)

	out, err = remote.Invoke(ctx, "execute_sql", map[string]any{"query": "SELECT 1 AS probe"})
	if err != nil {
		log.Fatalf("execute_sql: %v", err)
	}
	fmt.Printf("\nexecute_sql:\n%s\n", out)
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	subject := fs.String("subject", "", "token subject")
	fs.Parse(args)

	if *subject == "" {
		log.Fatal("--subject is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	a := auth.New(cfg.Auth.Secret, cfg.Auth.TokenExpiryMin)
	if !a.Enabled() {
		log.Fatal("auth.secret is not set; the endpoint is open and needs no token")
	}

	token, err := a.GenerateToken(*subject)
	if err != nil {
		log.Fatalf("generating token: %v", err)
	}
	fmt.Println(token)
}
