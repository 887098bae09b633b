// ft-scroll fetches every page of a paginated Intra API endpoint and writes
// the items to stdout as NDJSON (one item per line) or CSV.
//
// Credentials come from the FT_UID and FT_SECRET environment variables.
//
// Usage:
//
//	ft-scroll -endpoint /v2/campus/1/users -concurrency 4 \
//	    -param 'filter[kind]=student' -param 'range[created_at]=2025-01-01,2025-06-01'
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/intra42/ftapi/pkg/cache"
	"github.com/intra42/ftapi/pkg/client"
	"github.com/intra42/ftapi/pkg/logging"
	"github.com/intra42/ftapi/pkg/pagination"
)

// paramList collects repeated -param key=value flags.
type paramList []string

func (p *paramList) String() string { return strings.Join(*p, ",") }

func (p *paramList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

type options struct {
	endpoint    string
	params      paramList
	concurrency int
	startPage   int
	perPage     int
	format      string
	redisURL    string
	cacheTTL    time.Duration
	metricsAddr string
	logLevel    string
	pretty      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", "", "Intra endpoint to scroll, e.g. /v2/campus/1/users")
	flag.Var(&opts.params, "param", "query parameter as key=value, repeatable")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "number of scroll workers")
	flag.IntVar(&opts.startPage, "start-page", 1, "first page to fetch")
	flag.IntVar(&opts.perPage, "per-page", 100, "items per page")
	flag.StringVar(&opts.format, "format", "ndjson", "output format: ndjson or csv")
	flag.StringVar(&opts.redisURL, "redis", "", "Redis address for page caching (empty disables)")
	flag.DurationVar(&opts.cacheTTL, "cache-ttl", time.Minute, "cached page freshness")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&opts.pretty, "pretty", false, "human-readable log output")
	flag.Parse()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.pretty,
		Output: os.Stderr,
	})

	if err := run(opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("ft-scroll failed")
	}
}

func run(opts options, out io.Writer) error {
	if opts.endpoint == "" {
		return fmt.Errorf("-endpoint is required")
	}
	if opts.format == "" {
		opts.format = "ndjson"
	}
	if opts.format != "ndjson" && opts.format != "csv" {
		return fmt.Errorf("unknown -format %q, want ndjson or csv", opts.format)
	}
	uid, secret := os.Getenv("FT_UID"), os.Getenv("FT_SECRET")
	if uid == "" || secret == "" {
		return fmt.Errorf("FT_UID and FT_SECRET must be set")
	}

	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig(uid, secret)
	cfg.PerPage = opts.perPage
	cfg.CacheTTL = opts.cacheTTL

	if opts.redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: opts.redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", opts.redisURL, err)
		}
		defer redisClient.Close()
		cfg.Cache = cache.NewManager(redisClient)
		log.Info().Str("addr", opts.redisURL).Msg("Page caching enabled")
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr)
	}

	ftClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer ftClient.Close()

	scrollCfg := pagination.DefaultConfig()
	scrollCfg.Concurrency = opts.concurrency
	scrollCfg.StartPage = opts.startPage

	log.Info().
		Str("endpoint", opts.endpoint).
		Int("concurrency", opts.concurrency).
		Msg("Starting scroll")

	start := time.Now()
	items, pageErrs := client.ScrollAll[json.RawMessage](ctx, ftClient, scrollCfg, opts.endpoint, params)

	if err := writeItems(out, opts.format, items); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Info().
		Int("items", len(items)).
		Int("failed_pages", len(pageErrs)).
		Dur("elapsed", time.Since(start)).
		Msg("Scroll finished")

	for _, pe := range pageErrs {
		log.Error().Int("page", pe.Page).Err(pe.Err).Msg("Page abandoned")
	}
	if len(pageErrs) > 0 {
		return fmt.Errorf("%d pages failed", len(pageErrs))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scroll interrupted: %w", err)
	}
	return nil
}

// parseParams converts repeated key=value strings into url.Values.
func parseParams(pairs []string) (url.Values, error) {
	params := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid -param %q, want key=value", pair)
		}
		params.Add(key, value)
	}
	return params, nil
}

func writeItems(w io.Writer, format string, items []json.RawMessage) error {
	if format == "csv" {
		return writeCSV(w, items)
	}
	return writeNDJSON(w, items)
}

// writeNDJSON writes each item as one JSON line.
func writeNDJSON(w io.Writer, items []json.RawMessage) error {
	for _, item := range items {
		if _, err := w.Write(item); err != nil {
			return err
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV flattens the top-level scalar fields of each item into CSV rows.
// Columns come from the first item's keys, sorted; nested objects and arrays
// are emitted as compact JSON.
func writeCSV(w io.Writer, items []json.RawMessage) error {
	if len(items) == 0 {
		return nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &first); err != nil {
		return fmt.Errorf("csv output requires object items: %w", err)
	}

	columns := make([]string, 0, len(first))
	for key := range first {
		columns = append(columns, key)
	}
	sort.Strings(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return err
		}
		for i, col := range columns {
			row[i] = csvField(fields[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
