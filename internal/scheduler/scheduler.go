package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"HiLoBacktester/internal/config"
	"HiLoBacktester/internal/notifier"
	"HiLoBacktester/internal/recorder"
	"HiLoBacktester/internal/runner"
)

// Backtester runs a single backtest.
type Backtester interface {
	Run(ctx context.Context, req runner.Request) (*runner.Outcome, error)
}

// Sender delivers a message to the operator.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler re-runs the configured backtest on a cron schedule and answers
// chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Backtester
	Notifier Sender
	Recorder recorder.Recorder
	Defaults runner.Request
	Capital  float64
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r Backtester, n Sender, rec recorder.Recorder, defaults runner.Request, capital float64) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   r,
		Notifier: n,
		Recorder: rec,
		Defaults: defaults,
		Capital:  capital,
		Ctx:      ctx,
	}
}

// Register schedules the default backtest.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register backtest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the default backtest immediately and reports the result.
func (s *Scheduler) RunNow() {
	log.Info().Str("symbol", s.Defaults.Symbol).Msg("running scheduled backtest")
	s.trySend(s.backtest(s.Ctx, s.Defaults))
}

func (s *Scheduler) backtest(ctx context.Context, req runner.Request) string {
	out, err := s.Runner.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("symbol", req.Symbol).Msg("backtest failed")
		return notifier.FormatError(req.Symbol, err)
	}
	return notifier.FormatRunSummary(out.Final, out.Sweep, s.Capital, out.ReportPath)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	switch strings.ToLower(fields[0]) {
	case "/backtest":
		req, err := ParseBacktest(fields[1:], s.Defaults)
		if err != nil {
			return fmt.Sprintf("⚠️ %v\n\n%s", err, notifier.FormatHelp())
		}
		return s.backtest(ctx, req)
	case "/history":
		runs, err := s.Recorder.RecentRuns(10)
		if err != nil {
			log.Error().Err(err).Msg("load history")
			return "⚠️ history unavailable"
		}
		return notifier.FormatHistory(runs)
	default:
		return notifier.FormatHelp()
	}
}

// ParseBacktest reads "SYMBOL [START] [END] [COST] [MAXPERIOD]" on top of
// base. A "-" keeps the default for that position.
func ParseBacktest(args []string, base runner.Request) (runner.Request, error) {
	req := base
	if len(args) > 5 {
		return req, fmt.Errorf("too many arguments")
	}
	arg := func(i int) (string, bool) {
		if i >= len(args) || args[i] == "-" {
			return "", false
		}
		return args[i], true
	}
	if v, ok := arg(0); ok {
		req.Symbol = strings.ToUpper(v)
	}
	if v, ok := arg(1); ok {
		t, err := config.ParseDate(v)
		if err != nil {
			return req, fmt.Errorf("start date %q: expected YYYY-MM-DD", v)
		}
		req.Start = t
	}
	if v, ok := arg(2); ok {
		t, err := config.ParseDate(v)
		if err != nil {
			return req, fmt.Errorf("end date %q: expected YYYY-MM-DD", v)
		}
		req.End = t
	}
	if v, ok := arg(3); ok {
		cost, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("cost %q is not a number", v)
		}
		req.TransactionCost = cost
	}
	if v, ok := arg(4); ok {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return req, fmt.Errorf("max period %q must be a positive integer", v)
		}
		req.MaxPeriod = p
	}
	if req.Symbol == "" {
		return req, fmt.Errorf("symbol is required")
	}
	return req, nil
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
