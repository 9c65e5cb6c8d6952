package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"

	"github.com/sweeney/apcupsd-exporter/internal/apcupsd"
	"github.com/sweeney/apcupsd-exporter/internal/config"
	"github.com/sweeney/apcupsd-exporter/internal/metrics"
	"github.com/sweeney/apcupsd-exporter/internal/publisher"
)

const program = "apcupsd_exporter"

// options are the command line flags. Flags that are set override the
// config file and environment.
type options struct {
	Config  string   `short:"c" long:"config" description:"path to a TOML or YAML config file" default:"/etc/apcupsd-exporter/config.toml"`
	Hosts   []string `long:"host" description:"the server and port running apcupsd; repeat for several UPSes"`
	Port    int      `short:"p" long:"port" description:"port for the exporter to listen on"`
	Verbose bool     `short:"v" long:"verbose" description:"send verbose output to the console"`
	Version bool     `long:"version" description:"print the version number and exit"`
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = program

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply copies the flags that were given into cfg.
func (o *options) apply(cfg *config.Config) {
	if len(o.Hosts) > 0 {
		cfg.Exporter.Hosts = o.Hosts
	}
	if o.Port != 0 {
		cfg.Exporter.ListenPort = o.Port
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println(version.Print(program))
		return
	}

	log := newLogger(os.Stderr, opts.Verbose)
	slog.SetDefault(log)

	if err := run(opts, log); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(opts *options, log *slog.Logger) error {
	cfg, err := config.Load(opts.Config, "./config.toml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	opts.apply(cfg)

	targets, err := apcupsd.ParseTargets(cfg.Exporter.Hosts)
	if err != nil {
		return fmt.Errorf("parsing hosts: %w", err)
	}
	if len(targets) == 0 {
		return errors.New("no apcupsd hosts configured")
	}

	poller := &apcupsd.Poller{
		Fetcher:     apcupsd.NewClient(cfg.Exporter.Timeout.Duration),
		StripUnits:  cfg.Exporter.StripUnits,
		Concurrency: cfg.Exporter.Concurrency,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if cfg.MQTT.Enabled {
		pub, err := publisher.NewMQTTPublisher(cfg.MQTT, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		defer pub.Close() //nolint:errcheck

		go runMQTT(ctx, poller, targets, pub, cfg.MQTT, log)
	}

	reg := newRegistry(poller, targets, log)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Exporter.ListenPort),
		Handler:           newMux(reg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting exporter", "version", version.Version, "port", cfg.Exporter.ListenPort, "hosts", cfg.Exporter.Hosts)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newLogger returns a tint logger writing to w; verbose enables debug output.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
}

// newRegistry builds a registry holding only the UPS collector and build
// info; Go runtime and process metrics are left out.
func newRegistry(poller *apcupsd.Poller, targets []apcupsd.Target, log *slog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(poller, targets, log),
		versioncollector.NewCollector(program),
	)
	return reg
}

func newMux(reg *prometheus.Registry, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(log.Handler(), slog.LevelError),
	}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>apcupsd exporter</title></head>
<body><h1>apcupsd exporter</h1><p><a href="/metrics">Metrics</a></p></body></html>
`)
	})
	return mux
}

// runMQTT polls every target on cfg.Interval and republishes the results
// until ctx is cancelled.
func runMQTT(ctx context.Context, poller *apcupsd.Poller, targets []apcupsd.Target, pub publisher.Publisher, cfg config.MQTTConfig, log *slog.Logger) {
	interval := cfg.Interval.Duration
	if interval <= 0 {
		interval = 30 * time.Second
	}
	pcfg := publisher.PublishConfig{Prefix: cfg.TopicPrefix, Retained: cfg.Retained}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("publishing to mqtt", "broker", cfg.Broker, "interval", interval)
	for {
		if err := doPublish(ctx, poller, targets, pub, pcfg, log); err != nil {
			log.Warn("mqtt publish failed", "err", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// doPublish polls every target once and publishes each result. A host that
// fails to publish does not stop the others; the errors are joined.
func doPublish(ctx context.Context, poller *apcupsd.Poller, targets []apcupsd.Target, pub publisher.Publisher, pcfg publisher.PublishConfig, log *slog.Logger) error {
	var errs []error
	for _, r := range poller.PollAll(ctx, targets) {
		if r.Err != nil {
			log.Warn("polling ups failed", "host", r.Target.String(), "err", r.Err)
		}
		if err := publisher.PublishResult(r, pcfg, pub); err != nil {
			errs = append(errs, fmt.Errorf("publishing %s: %w", r.Target, err))
		}
	}
	return errors.Join(errs...)
}
