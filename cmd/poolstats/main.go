package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/pooledbismuth/poolstats/internal/service"
	"github.com/pooledbismuth/poolstats/internal/stats"
	"github.com/pooledbismuth/poolstats/pkg/config"
	"github.com/pooledbismuth/poolstats/pkg/logging"
)

type options struct {
	DB       string `long:"db" env:"POOL_DATABASE_URL" default:"sqlite://data/pool.db" description:"Pool database (sqlite://path or postgres DSN)"`
	Address  string `long:"address" description:"Print the summary of one miner address instead of a window report"`
	Hours    int    `long:"hours" default:"1" description:"Window report width in hours, clamped to 1-12"`
	Compact  bool   `long:"compact" description:"Print JSON on a single line"`
	LogLevel string `long:"log-level" env:"POOL_LOG_LEVEL" default:"WARN" description:"Log level"`
}

type reporter interface {
	AddressSummary(ctx context.Context, address string) (*stats.AddressSummary, error)
	WindowReport(ctx context.Context, hours int) (*stats.WindowReport, error)
}

func main() {
	opts := options{}
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := logging.InitLogger(&config.LoggingConfig{Level: opts.LogLevel, Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := service.OpenBackend(&config.DatabaseConfig{
		URL:          opts.DB,
		MaxIdleConns: 1,
		MaxOpenConns: 2,
	}, opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "poolstats: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	if err := run(ctx, opts, service.NewReporter(backend), os.Stdout); err != nil {
		logging.GetLogger().Debug("Report failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "poolstats: %v\n", err)
		backend.Close()
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, opts options, r reporter, out io.Writer) error {
	var (
		result interface{}
		err    error
	)
	if opts.Address != "" {
		result, err = r.AddressSummary(ctx, opts.Address)
	} else {
		result, err = r.WindowReport(ctx, opts.Hours)
	}
	if err != nil {
		return err
	}

	var data []byte
	if opts.Compact {
		data, err = sonic.ConfigStd.Marshal(result)
	} else {
		data, err = sonic.ConfigStd.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}

// exitCode separates "nothing to report" from hard failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, stats.ErrNotFound), errors.Is(err, stats.ErrNoData):
		return 3
	case errors.Is(err, stats.ErrInsufficientData):
		return 4
	default:
		return 1
	}
}
