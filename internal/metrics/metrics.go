// Package metrics maps decoded apcupsd status records onto a fixed catalogue
// of Prometheus samples. Mapping is pure apart from debug logging; the
// Collector in this package adds the polling.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/apcupsd-exporter/internal/apcupsd"
)

const (
	timestampLayout = "2006-01-02 15:04:05 -0700"
	dateLayout      = "2006-01-02"
	shortDateLayout = "01/02/06"
)

var (
	errNotFinite  = errors.New("not a finite number")
	errNotFullDay = errors.New("not a full year, month and day")
)

// Sample is one observation of a catalogue metric for one host.
type Sample struct {
	Desc        *Descriptor
	LabelValues []string // ordered as Desc.Labels
	Value       float64
}

// Metric converts s into a constant prometheus gauge.
func (s Sample) Metric() (prometheus.Metric, error) {
	return prometheus.NewConstMetric(s.Desc.Desc(), prometheus.GaugeValue, s.Value, s.LabelValues...)
}

// FieldError reports a status field whose value does not have the expected
// numeric or date shape. It only ever costs that field's sample.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: cannot parse %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Map produces the samples for one host's status record. Optional fields
// that are missing are skipped silently; fields that fail to parse are
// logged at debug level and skipped. Map never fails as a whole.
func Map(host string, rec *apcupsd.Record, log *slog.Logger) []Sample {
	if log == nil {
		log = slog.Default()
	}

	samples := make([]Sample, 0, len(Catalogue)+int(numStatuses))
	for _, d := range Catalogue {
		raw, ok := rec.Get(d.Field)
		if !ok {
			if d.Required {
				log.Debug("required field missing", "host", host, "field", d.Field)
			}
			continue
		}

		switch d.Kind {
		case KindInfo:
			samples = append(samples, Sample{Desc: d, LabelValues: []string{host, raw}, Value: 1})
		case KindEnum:
			samples = append(samples, statusSamples(d, host, raw)...)
		default:
			if d.Absent != "" && raw == d.Absent {
				continue
			}
			v, err := d.parse(raw)
			if err != nil {
				log.Debug("skipping field", "host", host, "err", &FieldError{Field: d.Field, Value: raw, Err: err})
				continue
			}
			samples = append(samples, Sample{Desc: d, LabelValues: []string{host}, Value: v})
		}
	}
	return samples
}

// statusSamples expands raw into one sample per known Status. A value that
// matches no known Status leaves every sample at 0.
func statusSamples(d *Descriptor, host, raw string) []Sample {
	current, known := ParseStatus(raw)

	out := make([]Sample, 0, numStatuses)
	for _, s := range Statuses() {
		v := 0.0
		if known && s == current {
			v = 1
		}
		out = append(out, Sample{Desc: d, LabelValues: []string{host, s.Label()}, Value: v})
	}
	return out
}

// parseNumber converts a status value to float64. A unit suffix left on by
// the decoder is tolerated.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(apcupsd.StripUnit(s)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// parseTimestamp converts "2006-01-02 15:04:05 -0700" to epoch seconds.
func parseTimestamp(s string) (float64, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

// parseDate converts a date to epoch seconds at UTC midnight. Some firmware
// reports "01/02/06" instead of ISO dates. Other numeric layouts are left to
// dateparse, but only when year, month and day are all present.
func parseDate(s string) (float64, error) {
	for _, layout := range []string{dateLayout, shortDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix()), nil
		}
	}
	if !isFullDate(s) {
		return 0, errNotFullDay
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

// isFullDate reports whether s is three runs of digits separated by '-', '/'
// or '.'.
func isFullDate(s string) bool {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '/' || r == '.'
	})
	if len(parts) != 3 || len(s) != len(parts[0])+len(parts[1])+len(parts[2])+2 {
		return false
	}
	for _, p := range parts {
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
