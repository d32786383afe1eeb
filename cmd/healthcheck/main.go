// Command healthcheck runs the integration analysis once and prints the
// report. It exits 1 when any check fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/config"
	"backend-birdtours/internal/db"
	"backend-birdtours/internal/health"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/stream"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type deps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
}

func main() {
	format := flag.String("format", "text", "output format: text or json")
	timeout := flag.Duration("timeout", 30*time.Second, "overall analysis timeout")
	flag.Parse()

	os.Exit(run(deps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
	}, *format, *timeout, os.Stdout, os.Stderr))
}

func run(d deps, format string, timeout time.Duration, stdout, stderr io.Writer) int {
	cfg := d.loadConfig()

	logger, err := logging.New(cfg)
	if err != nil {
		logger = logrus.New()
	}
	logger.SetOutput(stderr)

	var opts []health.Option
	pg, err := d.connectPostgres(cfg)
	if err != nil {
		logger.WithError(err).Warn("postgres connection failed, store checks will fail")
	} else {
		defer pg.Close()
		opts = append(opts, health.WithPoolSize(pg.Config().MaxConns))
	}
	store := db.PoolQuerier(pg, err)

	rdb := d.connectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	hub := stream.NewHub(rdb, logger)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tokens := auth.NewService(cfg.JWTSecret, store, cfg.SiteURL, logger)
	report := health.NewAnalyzer(store, tokens, hub, cfg, logger, opts...).RunCompleteAnalysis(ctx)

	if err := write(stdout, report, format); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 2
	}
	if report.Failed > 0 {
		return 1
	}
	return 0
}

func write(w io.Writer, report health.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, r := range report.Results {
		if _, err := fmt.Fprintf(w, "[%-7s] %-14s %-26s %s\n", r.Status, r.Category, r.Test, r.Message); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\nscore %d (passed %d, warnings %d, failed %d, info %d)\n",
		report.Score, report.Passed, report.Warnings, report.Failed, report.Info)
	if len(report.Recommendations) > 0 {
		fmt.Fprintln(w, "\nrecommendations:")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	return nil
}
