package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/collector"
	"HiLoBacktester/internal/config"
	"HiLoBacktester/internal/logger"
	"HiLoBacktester/internal/metrics"
	"HiLoBacktester/internal/notifier"
	"HiLoBacktester/internal/recorder"
	"HiLoBacktester/internal/report"
	"HiLoBacktester/internal/runner"
	"HiLoBacktester/internal/scheduler"
	"HiLoBacktester/internal/strategy"
)

func main() {
	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	symbol := flag.String("symbol", "", "ticker to backtest")
	start := flag.String("start", "", "first date, YYYY-MM-DD (default: full history)")
	end := flag.String("end", "", "end date, YYYY-MM-DD, exclusive")
	cost := flag.Float64("cost", 0, "transaction cost per unit traded, as a fraction")
	minPeriod := flag.Int("min-period", 0, "smallest hilo period to test")
	maxPeriod := flag.Int("max-period", 0, "largest hilo period to test")
	csvFile := flag.String("csv", "", "read bars from this CSV export instead of the configured source")
	serve := flag.Bool("serve", false, "run the scheduler and Telegram command loop")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "symbol":
			cfg.Backtest.Symbol = *symbol
		case "start":
			cfg.Backtest.Start = *start
		case "end":
			cfg.Backtest.End = *end
		case "cost":
			cfg.Backtest.TransactionCost = *cost
		case "min-period":
			cfg.Backtest.MinPeriod = *minPeriod
		case "max-period":
			cfg.Backtest.MaxPeriod = *maxPeriod
		}
	})

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	startDate, endDate, err := cfg.Dates()
	if err != nil {
		log.Fatal().Err(err).Msg("backtest dates")
	}

	metrics.Register()
	defer func() {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn().Err(err).Msg("write metrics textfile")
		}
	}()

	fetcher := newFetcher(cfg, *csvFile)
	log.Info().Str("source", fetcher.Name()).Msg("data source")

	rec := newRecorder(cfg.Database.SQLitePath)
	defer rec.Close()

	r := runner.New(
		collector.NewCollector(fetcher),
		strategy.NewOptimizer(cfg.Backtest.Workers),
		report.NewWriter(cfg.Report.Dir, cfg.Backtest.InitialCapital),
		rec,
	)
	if bf := benchmarkFetcher(cfg, *csvFile, fetcher); bf != nil {
		r.WithBenchmark(cfg.Backtest.Benchmark, collector.NewCollector(bf))
	} else {
		log.Info().Msg("benchmark disabled for a single-file or mock data source")
	}
	req := runner.Request{
		Symbol:          cfg.Backtest.Symbol,
		Start:           startDate,
		End:             endDate,
		TransactionCost: cfg.Backtest.TransactionCost,
		MinPeriod:       cfg.Backtest.MinPeriod,
		MaxPeriod:       cfg.Backtest.MaxPeriod,
		PeriodStep:      cfg.Backtest.PeriodStep,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *serve {
		if err := runServe(ctx, cfg, r, rec, req); err != nil {
			log.Error().Err(err).Msg("serve")
			cancel()
			os.Exit(1)
		}
		return
	}

	began := time.Now()
	out, err := r.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("symbol", req.Symbol).Msg("backtest failed")
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn().Err(werr).Msg("write metrics textfile")
		}
		rec.Close()
		cancel()
		os.Exit(1)
	}
	gross, net := out.Final.Final()
	log.Info().
		Str("run_id", out.RunID).
		Str("symbol", out.Final.Symbol).
		Int("best_period", out.Best).
		Float64("gross", gross).
		Float64("net", net).
		Int("trades", out.Final.Trades()).
		Str("report", out.ReportPath).
		Dur("elapsed", time.Since(began)).
		Msg("backtest complete")
}

func runServe(ctx context.Context, cfg *config.Config, r *runner.Runner, rec recorder.Recorder, req runner.Request) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	sched := scheduler.NewScheduler(ctx, r, tn, rec, req, cfg.Backtest.InitialCapital)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Info().Str("cron", cfg.Schedule.Cron).Msg("HiLo backtester is running, press Ctrl+C to stop")

	if os.Getenv("RUN_ON_START") == "true" {
		go sched.RunNow()
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}

func newFetcher(cfg *config.Config, csvFile string) collector.Fetcher {
	if csvFile != "" {
		return &collector.CSVFetcher{File: csvFile}
	}
	switch cfg.Data.Source {
	case "csv":
		return &collector.CSVFetcher{Dir: cfg.Data.CacheDir}
	case "mock":
		return &collector.MockFetcher{Price: 100, Days: 730}
	}
	yahoo := collector.NewYahooFetcher(cfg.Proxy)
	if cfg.Data.CacheDir == "" {
		return yahoo
	}
	return &collector.CachedFetcher{Cache: &collector.CSVFetcher{Dir: cfg.Data.CacheDir}, Source: yahoo}
}

// benchmarkFetcher returns the source for the benchmark index, or nil when the
// asset source ignores the requested symbol.
func benchmarkFetcher(cfg *config.Config, csvFile string, asset collector.Fetcher) collector.Fetcher {
	if csvFile != "" || cfg.Data.Source == "mock" {
		return nil
	}
	return asset
}

func newRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
