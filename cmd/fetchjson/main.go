// Package main is the entrypoint for fetchjson, which fetches a URL and
// prints the decoded JSON result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	redis "github.com/redis/go-redis/v9"

	"github.com/bjaus/callback"
	"github.com/bjaus/callback/httpfetch"
	"github.com/bjaus/callback/internal/config"
	"github.com/bjaus/callback/rediscache"
)

const usage = `Usage: fetchjson [-raw] [-cached] URL

Fetches URL and prints the result. JSON objects and arrays are printed one
element per line; -raw prints the body verbatim.

Flags:
  -raw      Print the body without decoding it.
  -cached   Also print the stored response, if any, before fetching.

Environment: FETCHJSON_REDIS_ADDR, FETCHJSON_REDIS_DB, FETCHJSON_REDIS_KEY_PREFIX,
FETCHJSON_CACHE_TTL, FETCHJSON_REQUEST_TIMEOUT, FETCHJSON_HEADERS (Key:Value,...),
FETCHJSON_ENVELOPE (gjson path, e.g. data), FETCHJSON_LOG_LEVEL.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fetchjson", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	raw := fs.Bool("raw", false, "print the body without decoding it")
	cached := fs.Bool("cached", false, "print the stored response before fetching")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	url := fs.Arg(0)

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "fetchjson: %v\n", err)
		return 1
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	opts := []httpfetch.Option{
		httpfetch.WithLogger(logger),
		httpfetch.WithTimeout(cfg.RequestTimeout),
		httpfetch.WithStore(store, cfg.CacheTTL),
	}
	pairs, _ := cfg.HeaderPairs()
	for _, p := range pairs {
		opts = append(opts, httpfetch.WithHeader(p[0], p[1]))
	}
	client := httpfetch.New(opts...)

	p := &printer{out: stdout, errOut: stderr, cached: *cached}
	dopts := []callback.Option{callback.WithLogger(logger)}
	if cfg.Envelope != "" {
		dopts = append(dopts, callback.WithEnvelope(cfg.Envelope))
	}

	var recv callback.Receiver
	if *raw {
		recv = callback.New[string](printerFor(p, p.line), dopts...)
	} else {
		recv = callback.New[[]any](printerFor(p, p.values), dopts...)
	}

	if err := client.Get(ctx, url, recv); err != nil {
		return 1
	}
	return 0
}

func openStore(cfg *config.Config) (httpfetch.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return httpfetch.NewMemoryStore(), func() {}, nil
	}
	s, err := rediscache.NewWithOptions(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}, rediscache.WithKeyPrefix(cfg.RedisKeyPrefix))
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

// printer writes outcomes to the terminal.
type printer struct {
	out    io.Writer
	errOut io.Writer
	cached bool
}

func printerFor[T any](p *printer, show func(T)) callback.Funcs[T] {
	return callback.Funcs[T]{
		Success: func(ctx context.Context, url string, result T) {
			show(result)
		},
		CacheSuccess: func(ctx context.Context, url string, result T) {
			if p.cached {
				fmt.Fprintln(p.errOut, "# cached")
				show(result)
				fmt.Fprintln(p.errOut, "# network")
			}
		},
		Failure: func(ctx context.Context, url string, f *callback.Failure) {
			fmt.Fprintf(p.errOut, "fetchjson: %s: %d %s\n", url, f.Code, f.Message)
		},
		Timeout: func(ctx context.Context) {
			fmt.Fprintln(p.errOut, "fetchjson: request timed out")
		},
	}
}

func (p *printer) values(vs []any) {
	for _, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(p.errOut, "fetchjson: encode: %v\n", err)
			continue
		}
		p.line(string(b))
	}
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.out, s)
}
