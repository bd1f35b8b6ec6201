package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/gotalk/pkg/datastore"
	"github.com/NicolasHaas/gotalk/pkg/logging"
	"github.com/NicolasHaas/gotalk/pkg/server"
	"github.com/NicolasHaas/gotalk/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP bind address for the chat server")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	flag.StringVar(&cfg.UsersFile, "users-file", "", "YAML file defining users to create on startup")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Disconnect clients inactive for this long")
	flag.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "How often to sweep for idle clients")
	flag.BoolVar(&cfg.ExportUsers, "export-users", false, "Export all users as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// Handle export command (run and exit)
	if cfg.ExportUsers {
		st, err := datastore.Open(cfg.DBPath)
		if err != nil {
			slog.Error("open database", "err", err)
			os.Exit(1)
		}
		defer st.Close()

		data, err := server.ExportUsersYAML(st)
		if err != nil {
			slog.Error("export users", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	st, err := datastore.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
