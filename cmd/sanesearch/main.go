// Command sanesearch is the reference host for the sanesearch library. It
// creates and fills an index, searches it, feeds it from Kafka and serves it
// over HTTP, all driven by one YAML config.
//
// Usage:
//
//	sanesearch [-config FILE] create
//	sanesearch [-config FILE] ingest FILE.jsonl
//	sanesearch [-config FILE] search QUERY...
//	sanesearch [-config FILE] publish FILE.jsonl
//	sanesearch [-config FILE] consume
//	sanesearch [-config FILE] serve
//	sanesearch [-config FILE] analytics
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, flag.Arg(0), flag.Args()[1:])
	stop()
	if err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "create":
		return runCreate(ctx, cfg)
	case "ingest":
		if len(args) != 1 {
			return fmt.Errorf("usage: sanesearch ingest FILE.jsonl")
		}
		return runIngest(ctx, cfg, args[0])
	case "search":
		if len(args) == 0 {
			return fmt.Errorf("usage: sanesearch search QUERY")
		}
		return runSearch(ctx, cfg, args)
	case "publish":
		if len(args) != 1 {
			return fmt.Errorf("usage: sanesearch publish FILE.jsonl")
		}
		return runPublish(ctx, cfg, args[0])
	case "consume":
		return runConsume(ctx, cfg)
	case "serve":
		return runServe(ctx, cfg)
	case "analytics":
		return runAnalytics(ctx, cfg)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: sanesearch [-config FILE] COMMAND [ARGS]

commands:
  create            create the index declared by index.fields
  ingest FILE       add JSON lines from FILE to the index and commit
  search QUERY      print the 10 best stored documents for QUERY
  publish FILE      validate JSON lines from FILE and queue them on Kafka
  consume           index documents queued on Kafka
  serve             serve search, ingestion, analytics and health over HTTP
  analytics         aggregate analytics events from Kafka and serve the stats

flags:
`)
	flag.PrintDefaults()
}
