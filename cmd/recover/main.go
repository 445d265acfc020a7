package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/changelog"
	"ambrosial/internal/config"
	"ambrosial/internal/logger"
	"ambrosial/internal/manifest"
	"ambrosial/internal/metrics"
	"ambrosial/internal/restore"
)

func main() {
	var (
		configFile      string
		manifestSource  string
		changelogSource string
		fromSeq         int64
		replayTimeout   time.Duration
		httpAddr        string
		pollInterval    time.Duration
	)
	flag.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flag.StringVar(&manifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&changelogSource, "changelog-source", "file", "file|kafka")
	flag.Int64Var(&fromSeq, "from-seq", 0, "replay only entries with a higher sequence number")
	flag.DurationVar(&replayTimeout, "replay-timeout", 10*time.Second, "how long a kafka replay waits for more messages")
	flag.StringVar(&httpAddr, "http", "", "http listen address for /metrics")
	flag.DurationVar(&pollInterval, "poll", 0, "repeat the recovery at this interval, 0 for once")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if err := logger.Init("recover", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}

	mreg := metrics.NewRegistry()
	if httpAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(httpAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var mReader manifest.Reader
	if manifestSource == "kafka" {
		mReader = manifest.NewKafkaReader(cfg.Brokers(), cfg.TopicManifest, cfg.ManifestKey)
	} else {
		mReader = manifest.NewFilesystemManifest(cfg.DataDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := &recoverer{
		cfg:             cfg,
		restorer:        restore.NewRestorer(mReader, mreg),
		metrics:         mreg,
		changelogSource: changelogSource,
		fromSeq:         fromSeq,
		replayTimeout:   replayTimeout,
	}
	if pollInterval <= 0 {
		if err := rec.cycle(ctx); err != nil {
			log.Fatal().Err(err).Msg("recovery failed")
		}
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if err := rec.cycle(ctx); err != nil {
			log.Error().Err(err).Msg("recovery cycle failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type recoverer struct {
	cfg             config.Config
	restorer        *restore.Restorer
	metrics         *metrics.Registry
	changelogSource string
	fromSeq         int64
	replayTimeout   time.Duration
}

// cycle replays the changelog into the store the latest manifest names.
func (r *recoverer) cycle(ctx context.Context) error {
	st, m, err := r.restorer.Target(ctx)
	if err != nil {
		return err
	}
	r.metrics.ManifestAgeSec.Set(time.Since(time.Unix(m.CreatedAtEpochSecond, 0)).Seconds())

	var res restore.Result
	if r.changelogSource == "kafka" {
		rctx, cancel := context.WithTimeout(ctx, r.replayTimeout)
		defer cancel()
		res, err = restore.ReplayKafka(rctx, restore.NewKafkaReader(r.cfg.Brokers(), r.cfg.TopicChangelog), r.fromSeq)
		if err != nil {
			return err
		}
		r.recordLag(ctx, res)
	} else {
		res, err = restore.ReplayFile(filepath.Join(r.cfg.DataDir, changelog.DefaultFile), r.fromSeq)
		if err != nil {
			return err
		}
	}
	if res.LastSeq < m.LastSeq {
		log.Warn().Int64("changelog_seq", res.LastSeq).Int64("manifest_seq", m.LastSeq).
			Msg("changelog ends before the manifest; store may stay incomplete")
	}

	saved, err := r.restorer.Apply(st, res)
	if err != nil {
		return err
	}
	log.Info().Int("applied", res.Applied).Int("skipped", res.Skipped).
		Int("added", len(saved.Added)).Int("total", saved.Total).Msg("recovery cycle done")
	return nil
}

func (r *recoverer) recordLag(ctx context.Context, res restore.Result) {
	brokers := r.cfg.Brokers()
	if len(brokers) == 0 || res.LastOffset < 0 {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	head, err := restore.HeadOffset(hctx, brokers[0], r.cfg.TopicChangelog)
	if err != nil {
		log.Warn().Err(err).Msg("head offset unavailable")
		return
	}
	r.metrics.ChangelogLag.Set(float64(head - res.LastOffset))
}
