package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"

	"quantstore/internal/application/usecase/collector"
	"quantstore/internal/infrastructure/config"
	"quantstore/internal/infrastructure/container"
	"quantstore/internal/infrastructure/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Setup("info")
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	cmd, args := "collect", []string(nil)
	if flag.NArg() > 0 {
		cmd, args = flag.Arg(0), flag.Args()[1:]
	}

	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("container init failed")
	}
	defer c.Close()

	if cmd == "collect" {
		err = collect(ctx, c)
	} else {
		err = query(ctx, c, os.Stdout, cmd, args)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		_ = c.Close()
		os.Exit(1)
	}
}

func collect(ctx context.Context, c *container.Container) error {
	cfg := c.Config()
	feeds, err := c.Feeds()
	if err != nil {
		return err
	}
	if len(cfg.Collector.Symbols) == 0 {
		return errors.New("collector.symbols is empty")
	}

	svc := collector.NewService(collector.ServiceDeps{
		Feeds:      feeds,
		Symbols:    cfg.Collector.Symbols,
		Klines:     c.App().KlineService(),
		OnlyFinal:  cfg.Collector.OnlyFinal,
		StatsEvery: cfg.StatsEvery(),
	})

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Strs("exchanges", cfg.Collector.Exchanges).
		Int("symbols", len(cfg.Collector.Symbols)).
		Str("interval", cfg.Collector.Interval).
		Msg("quantstore collector started")

	var g run.Group
	{
		cctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return svc.Run(cctx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, context.Canceled) {
		log.Info().Err(err).Msg("collector stopped")
		return nil
	}
	return err
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: quantstore [-config path] <command> [flags]

commands:
  collect      stream klines from the configured exchanges (default)
  klines       -platform binance -symbol BTC/USDT -start ms -end ms
  kline-at     -platform binance -symbol BTC/USDT [-ts ms]
  asset        -platform binance -account name
  snapshots    -platform binance -account name [-start ms] [-end ms]
  order        -platform binance (-no order_no | -symbol BTC/USDT)

flags:
`)
	flag.PrintDefaults()
}
