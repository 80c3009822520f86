package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"quantstore/internal/infrastructure/container"
)

// query runs a read-only subcommand and writes the result as JSON.
func query(ctx context.Context, c *container.Container, w io.Writer, cmd string, args []string) error {
	app := c.App()
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(w)
	var (
		symbol   = fs.String("symbol", "", "BASE/QUOTE")
		platform = fs.String("platform", "", "platform, e.g. binance")
		account  = fs.String("account", "", "account")
		orderNo  = fs.String("no", "", "order number")
		ts       = fs.Int64("ts", 0, "timestamp ms, 0 = latest")
		start    = fs.Int64("start", 0, "range start ms")
		end      = fs.Int64("end", 0, "range end ms")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		out   any
		found = true
		err   error
	)
	switch cmd {
	case "klines":
		if *platform == "" || *symbol == "" {
			return errors.New("-platform and -symbol required")
		}
		out, err = app.KlineService().Range(ctx, *platform, *symbol, *start, *end)
	case "kline-at":
		if *platform == "" || *symbol == "" {
			return errors.New("-platform and -symbol required")
		}
		out, found, err = app.KlineService().AsOf(ctx, *platform, *symbol, *ts)
	case "asset":
		if *platform == "" || *account == "" {
			return errors.New("-platform and -account required")
		}
		out, found, err = app.AssetService().Current(ctx, *platform, *account)
	case "snapshots":
		if *platform == "" || *account == "" {
			return errors.New("-platform and -account required")
		}
		out, err = app.AssetService().Snapshots(ctx, *platform, *account, *start, *end)
	case "order":
		switch {
		case *platform == "":
			return errors.New("-platform required")
		case *orderNo != "":
			out, found, err = app.OrderService().Find(ctx, *platform, *orderNo)
		case *symbol != "":
			out, found, err = app.OrderService().Latest(ctx, *platform, *symbol)
		default:
			return errors.New("-no or -symbol required")
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	if !found {
		out = nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
