package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	drepo "CoinCast/internal/domain/repository"
	internalrepo "CoinCast/internal/repository"
	"CoinCast/internal/usecase"
	pkgch "CoinCast/pkg/clickhouse"
	"CoinCast/pkg/config"
	applogger "CoinCast/pkg/logger"
	"CoinCast/pkg/util"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "optional dotenv file")
	backend := flag.String("backend", "", "history source: clickhouse or sqlite (default archive.backend)")
	from := flag.String("from", "", "start of history, RFC3339 or unix (default 30 days ago)")
	to := flag.String("to", "", "end of history (default now)")
	limit := flag.Int("limit", 200000, "max rows read")
	out := flag.String("out", "", "output file (default prediction.scaler_path)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv %s: %v", *envFile, err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	l = l.With("scalerfit")

	if *backend == "" {
		*backend = cfg.Archive.Backend
	}
	if *out == "" {
		*out = cfg.Prediction.ScalerPath
	}
	now := time.Now().UTC()
	opts := fitOptions{
		Backend: *backend,
		From:    util.ParseTimeDefault(*from, time.Time{}),
		To:      util.ParseTimeDefault(*to, now),
		Limit:   *limit,
		Out:     *out,
	}
	if opts.From.IsZero() {
		opts.From = opts.To.Add(-30 * 24 * time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	err = run(ctx, cfg, opts, l, openArchive)
	cancel()
	if err != nil {
		l.Error("scaler fit failed", applogger.String("backend", opts.Backend), applogger.Error(err))
		os.Exit(1)
	}
}

type fitOptions struct {
	Backend string
	From    time.Time
	To      time.Time
	Limit   int
	Out     string
}

type archiveOpener func(ctx context.Context, cfg *config.Config, backend string, l *applogger.Logger) (drepo.Archive, func(), error)

// run fits the scaler and writes it. The archive is closed on every path.
func run(ctx context.Context, cfg *config.Config, opts fitOptions, l *applogger.Logger, open archiveOpener) error {
	archive, closeFn, err := open(ctx, cfg, opts.Backend, l)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer closeFn()

	res, err := usecase.FitScaler(ctx, archive, usecase.FitScalerParams{
		From:         opts.From,
		To:           opts.To,
		Limit:        opts.Limit,
		WindowLength: cfg.Prediction.WindowLength,
		Features:     cfg.Prediction.Features,
	})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(opts.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := res.Scaler.SaveFile(opts.Out); err != nil {
		return fmt.Errorf("write scaler %s: %w", opts.Out, err)
	}
	l.Info("scaler written",
		applogger.String("path", opts.Out),
		applogger.Int("rows", res.Rows),
		applogger.Int("windows", res.Windows),
		applogger.Strings("features", cfg.Prediction.Features),
		applogger.Any("center", res.Scaler.Center),
		applogger.Any("scale", res.Scaler.Scale),
	)
	return nil
}

func openArchive(ctx context.Context, cfg *config.Config, backend string, l *applogger.Logger) (drepo.Archive, func(), error) {
	switch backend {
	case "sqlite":
		a, err := internalrepo.NewSQLiteArchive(cfg.SQLite.Path, l)
		if err != nil {
			return nil, nil, err
		}
		return a, func() { _ = a.Close() }, nil
	case "clickhouse":
		ch, err := pkgch.NewClient(ctx,
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		)
		if err != nil {
			return nil, nil, err
		}
		return internalrepo.NewClickHouseArchive(ch, l), func() { _ = ch.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("backend %q cannot serve history, use clickhouse or sqlite", backend)
	}
}
