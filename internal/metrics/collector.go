package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/apcupsd-exporter/internal/apcupsd"
)

// Collector polls every target on each collection and exposes the mapped
// samples. Hosts that cannot be polled or decoded are logged and left out
// of that collection; they never fail it.
type Collector struct {
	poller  *apcupsd.Poller
	targets []apcupsd.Target
	log     *slog.Logger

	scrapesTotal       prometheus.Counter
	scrapeErrorsTotal  prometheus.Counter
	lastScrapeDuration prometheus.Gauge
}

// NewCollector returns a Collector for targets.
func NewCollector(poller *apcupsd.Poller, targets []apcupsd.Target, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		poller:  poller,
		targets: targets,
		log:     log,

		scrapesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apcupsd",
			Subsystem: "exporter",
			Name:      "scrapes_total",
			Help:      "Total number of scrapes.",
		}),
		scrapeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apcupsd",
			Subsystem: "exporter",
			Name:      "scrape_errors_total",
			Help:      "Total number of hosts that could not be polled or decoded.",
		}),
		lastScrapeDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "apcupsd",
			Subsystem: "exporter",
			Name:      "last_scrape_duration_seconds",
			Help:      "Duration of the last scrape across all hosts.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range Catalogue {
		ch <- d.Desc()
	}
	c.scrapesTotal.Describe(ch)
	c.scrapeErrorsTotal.Describe(ch)
	c.lastScrapeDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	begun := time.Now()

	for _, s := range c.Scrape(context.Background()) {
		m, err := s.Metric()
		if err != nil {
			c.log.Warn("dropping sample", "metric", s.Desc.Name, "err", err)
			continue
		}
		ch <- m
	}

	c.scrapesTotal.Inc()
	c.lastScrapeDuration.Set(time.Since(begun).Seconds())

	c.scrapesTotal.Collect(ch)
	c.scrapeErrorsTotal.Collect(ch)
	c.lastScrapeDuration.Collect(ch)
}

// Scrape polls every target once and returns the samples of the hosts that
// answered with a well-formed status.
func (c *Collector) Scrape(ctx context.Context) []Sample {
	var samples []Sample
	for _, r := range c.poller.PollAll(ctx, c.targets) {
		host := r.Target.String()
		if r.Err != nil {
			c.scrapeErrorsTotal.Inc()
			c.log.Warn("polling ups failed", "host", host, "err", r.Err)
			continue
		}
		samples = append(samples, Map(host, r.Record, c.log)...)
	}
	return samples
}
