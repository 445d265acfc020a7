package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/config"
	"ambrosial/internal/fetch"
	"ambrosial/internal/logger"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
	"ambrosial/internal/store"
	"ambrosial/internal/swiggy"
)

const usage = `usage: swiggy [flags] <command>

commands:
  fetch                     fetch the full order history and merge it into the store
  account                   print the profile of the session owner
  summary                   load the store and print entity counts
  latest                    load the store named by the latest manifest and print entity counts
  show <kind> <id> [ver]    load the store and print one entity
                            kinds: order item restaurant address payment offer

flags:
`

// overrides holds flag values that replace config values when set.
type overrides struct {
	ddav        bool
	dataDir     string
	format      string
	storeFile   string
	cookie      string
	limit       int
	logLevel    string
	metricsAddr string
	timeout     time.Duration
}

func main() {
	var (
		configFile string
		o          overrides
	)
	flag.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flag.BoolVar(&o.ddav, "ddav", false, "distinguish delivery address versions")
	flag.StringVar(&o.dataDir, "data-dir", "", "directory for the store, changelog and manifest")
	flag.StringVar(&o.format, "format", "", "store format: json|binary|pebble|badger")
	flag.StringVar(&o.storeFile, "store", "", "store path, overrides data-dir/<default name>")
	flag.StringVar(&o.cookie, "cookie", "", "session Cookie header")
	flag.IntVar(&o.limit, "limit", 0, "stop fetching after this many orders, 0 for all")
	flag.StringVar(&o.logLevel, "log-level", "", "debug|info|warn|error|disabled")
	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "listen address for /metrics, empty to disable")
	flag.DurationVar(&o.timeout, "timeout", 0, "per-request timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ddav":
			cfg.DDAV = o.ddav
		case "data-dir":
			cfg.DataDir = o.dataDir
		case "format":
			cfg.StoreFormat = o.format
		case "store":
			cfg.StoreFile = o.storeFile
		case "cookie":
			cfg.Cookie = o.cookie
		case "limit":
			cfg.FetchLimit = o.limit
		case "log-level":
			cfg.LogLevel = o.logLevel
		case "metrics-addr":
			cfg.MetricsAddr = o.metricsAddr
		case "timeout":
			cfg.RequestTimeout = o.timeout
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if err := logger.Init(cfg.AppName, cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("swiggy failed")
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	reg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	clog, err := cfg.ChangelogWriter()
	if err != nil {
		return fmt.Errorf("init changelog: %w", err)
	}
	if c, ok := clog.(io.Closer); ok {
		defer c.Close()
	}
	pub := cfg.ManifestPublisher()
	if c, ok := pub.(io.Closer); ok {
		defer c.Close()
	}

	client := fetch.NewClient(
		fetch.WithOrdersURL(cfg.OrdersURL),
		fetch.WithProfileURL(cfg.ProfileURL),
		fetch.WithTimeout(cfg.RequestTimeout),
		fetch.WithMetrics(reg),
	)
	sw := swiggy.New(swiggy.Options{
		DDAV:      cfg.DDAV,
		Fetcher:   client,
		Changelog: clog,
		Manifest:  pub,
		Metrics:   reg,
	})
	st, err := store.Open(cfg.Format(), cfg.StorePath())
	if err != nil {
		return err
	}

	switch args[0] {
	case "fetch":
		session, err := fetch.ParseSession(cfg.Cookie)
		if err != nil {
			return err
		}
		n, err := sw.Fetch(ctx, session, fetch.WithLimit(cfg.FetchLimit))
		if err != nil {
			return err
		}
		res, err := sw.Save(ctx, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "fetched %d orders, %d new, %d stored in %s\n", n, len(res.Added), res.Total, st.Location())
		return nil
	case "account":
		session, err := fetch.ParseSession(cfg.Cookie)
		if err != nil {
			return err
		}
		info, err := sw.AccountInfo(ctx, session)
		if err != nil {
			return err
		}
		return printJSON(out, info)
	case "summary":
		if err := sw.Load(st); err != nil {
			return err
		}
		return summary(out, sw)
	case "latest":
		if _, err := sw.LoadLatest(ctx, cfg.ManifestReader()); err != nil {
			return err
		}
		return summary(out, sw)
	case "show":
		if len(args) < 3 {
			return errors.New("show needs a kind and an id")
		}
		if err := sw.Load(st); err != nil {
			return err
		}
		v, err := show(sw, args[1], args[2], args[3:])
		if err != nil {
			return err
		}
		return printJSON(out, v)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func show(sw *swiggy.Swiggy, kindName, id string, rest []string) (any, error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	switch kind {
	case model.KindOrder, model.KindOffer:
		orderID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("order id %q: %w", id, err)
		}
		if kind == model.KindOffer {
			return sw.GetOffer(orderID)
		}
		return sw.GetOrder(orderID)
	case model.KindItem:
		return sw.GetItem(id)
	case model.KindRestaurant:
		return sw.GetRestaurant(id)
	case model.KindAddress, model.KindAddressVersion:
		if len(rest) == 0 {
			return sw.GetAddress(id)
		}
		ver, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("address version %q: %w", rest[0], err)
		}
		return sw.GetAddress(id, swiggy.WithVersion(ver))
	case model.KindPayment:
		return sw.GetPayment(id)
	}
	return nil, fmt.Errorf("cannot show %s", kind)
}

func summary(out io.Writer, sw *swiggy.Swiggy) error {
	items, err := sw.GetItems()
	if err != nil {
		return err
	}
	restaurants, err := sw.GetRestaurants()
	if err != nil {
		return err
	}
	addresses, err := sw.GetAddresses()
	if err != nil {
		return err
	}
	offers, err := sw.GetOffers()
	if err != nil {
		return err
	}
	payments, err := sw.GetPayments()
	if err != nil {
		return err
	}
	distinctItems := map[string]struct{}{}
	for _, it := range items {
		distinctItems[it.ItemID] = struct{}{}
	}
	distinctRestaurants := map[string]struct{}{}
	for _, r := range restaurants {
		distinctRestaurants[r.ID] = struct{}{}
	}
	distinctAddresses := map[string]struct{}{}
	for _, a := range addresses {
		distinctAddresses[a.Key()] = struct{}{}
	}
	return printJSON(out, map[string]int{
		"orders":      sw.Len(),
		"items":       len(distinctItems),
		"restaurants": len(distinctRestaurants),
		"addresses":   len(distinctAddresses),
		"offers":      len(offers),
		"payments":    len(payments),
	})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveMetrics(addr string, reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
