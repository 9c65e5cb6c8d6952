package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweeney/apcupsd-exporter/internal/apcupsd"
	"github.com/sweeney/apcupsd-exporter/internal/config"
	"github.com/sweeney/apcupsd-exporter/internal/publisher"
)

var (
	testLog  = slog.New(slog.NewTextHandler(io.Discard, nil))
	testPCfg = publisher.PublishConfig{Prefix: "apcupsd", Retained: true}
)

func sampleStatus() []byte {
	return apcupsd.EncodeStatus(
		apcupsd.Field{Key: "MODEL", Value: "Back-UPS RS 900G"},
		apcupsd.Field{Key: "STATUS", Value: "ONLINE"},
		apcupsd.Field{Key: "LINEV", Value: "230.0 Volts"},
		apcupsd.Field{Key: "LOADPCT", Value: "12.0 Percent"},
		apcupsd.Field{Key: "BCHARGE", Value: "100.0 Percent"},
		apcupsd.Field{Key: "END APC", Value: "2024-01-01 12:00:00 +0000"},
	)
}

func mustTargets(t *testing.T, hosts ...string) []apcupsd.Target {
	t.Helper()
	targets, err := apcupsd.ParseTargets(hosts)
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	return targets
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"--host", "ups1:3551", "--host", "ups2", "-p", "9162", "-v", "-c", "/tmp/x.toml"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if len(opts.Hosts) != 2 || opts.Hosts[0] != "ups1:3551" || opts.Hosts[1] != "ups2" {
		t.Errorf("Hosts = %v", opts.Hosts)
	}
	if opts.Port != 9162 {
		t.Errorf("Port = %d, want 9162", opts.Port)
	}
	if !opts.Verbose {
		t.Error("Verbose = false, want true")
	}
	if opts.Config != "/tmp/x.toml" {
		t.Errorf("Config = %q", opts.Config)
	}
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(nil)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.Config != "/etc/apcupsd-exporter/config.toml" {
		t.Errorf("Config = %q", opts.Config)
	}
	if opts.Port != 0 || opts.Verbose || opts.Version || len(opts.Hosts) != 0 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestParseOptions_UnknownFlag(t *testing.T) {
	if _, err := parseOptions([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := &config.Config{Exporter: config.ExporterConfig{ListenPort: 8080, Hosts: []string{"localhost:3551"}}}

	(&options{}).apply(cfg)
	if cfg.Exporter.ListenPort != 8080 || cfg.Exporter.Hosts[0] != "localhost:3551" {
		t.Errorf("empty options changed config: %+v", cfg.Exporter)
	}

	(&options{Hosts: []string{"ups1"}, Port: 9000}).apply(cfg)
	if cfg.Exporter.ListenPort != 9000 {
		t.Errorf("ListenPort = %d, want 9000", cfg.Exporter.ListenPort)
	}
	if len(cfg.Exporter.Hosts) != 1 || cfg.Exporter.Hosts[0] != "ups1" {
		t.Errorf("Hosts = %v", cfg.Exporter.Hosts)
	}
}

func TestDoPublish_Success(t *testing.T) {
	ff := &apcupsd.FakeFetcher{Responses: map[string][]byte{"ups1:3551": sampleStatus()}}
	fpub := &publisher.FakePublisher{}
	poller := &apcupsd.Poller{Fetcher: ff, StripUnits: true}

	if err := doPublish(context.Background(), poller, mustTargets(t, "ups1"), fpub, testPCfg, testLog); err != nil {
		t.Fatalf("doPublish: %v", err)
	}
	if n := ff.CallCount(); n != 1 {
		t.Errorf("CallCount = %d, want 1", n)
	}
	msg, ok := fpub.Find("apcupsd/ups1_3551/linev")
	if !ok {
		t.Fatal("apcupsd/ups1_3551/linev not published")
	}
	if msg.Payload != "230.0" {
		t.Errorf("linev payload = %q, want 230.0", msg.Payload)
	}
	if _, ok := fpub.Find("apcupsd/ups1_3551/state"); !ok {
		t.Error("apcupsd/ups1_3551/state not published")
	}
	if msg, _ := fpub.Find("apcupsd/ups1_3551/available"); msg.Payload != "online" {
		t.Errorf("available = %q, want online", msg.Payload)
	}
}

func TestDoPublish_PollError(t *testing.T) {
	ff := &apcupsd.FakeFetcher{}
	fpub := &publisher.FakePublisher{}
	poller := &apcupsd.Poller{Fetcher: ff}

	if err := doPublish(context.Background(), poller, mustTargets(t, "ups1"), fpub, testPCfg, testLog); err != nil {
		t.Fatalf("doPublish: %v", err)
	}
	if len(fpub.Messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(fpub.Messages))
	}
	if m := fpub.Messages[0]; m.Topic != "apcupsd/ups1_3551/available" || m.Payload != "offline" {
		t.Errorf("message = %+v, want offline availability", m)
	}
}

func TestDoPublish_PublishError(t *testing.T) {
	ff := &apcupsd.FakeFetcher{Responses: map[string][]byte{"ups1:3551": sampleStatus()}}
	fpub := &publisher.FakePublisher{PublishError: errors.New("broker down")}
	poller := &apcupsd.Poller{Fetcher: ff}

	if err := doPublish(context.Background(), poller, mustTargets(t, "ups1"), fpub, testPCfg, testLog); err == nil {
		t.Fatal("expected error when publish fails")
	}
}

// topicFailPublisher fails every publish below one topic prefix.
type topicFailPublisher struct {
	publisher.FakePublisher
	failPrefix string
}

func (p *topicFailPublisher) Publish(msg publisher.Message) error {
	if strings.HasPrefix(msg.Topic, p.failPrefix) {
		return errors.New("broker rejected " + msg.Topic)
	}
	return p.FakePublisher.Publish(msg)
}

func TestDoPublish_PublishErrorDoesNotStopOtherHosts(t *testing.T) {
	ff := &apcupsd.FakeFetcher{Responses: map[string][]byte{
		"ups1:3551": sampleStatus(),
		"ups2:3551": sampleStatus(),
	}}
	fpub := &topicFailPublisher{failPrefix: "apcupsd/ups1_3551/"}
	poller := &apcupsd.Poller{Fetcher: ff, Concurrency: 1}

	err := doPublish(context.Background(), poller, mustTargets(t, "ups1", "ups2"), fpub, testPCfg, testLog)
	if err == nil {
		t.Fatal("expected error for ups1")
	}
	if !strings.Contains(err.Error(), "ups1:3551") {
		t.Errorf("error %q does not name ups1", err)
	}
	if _, ok := fpub.Find("apcupsd/ups2_3551/state"); !ok {
		t.Error("ups2 state not published after ups1 failed")
	}
	if msg, _ := fpub.Find("apcupsd/ups2_3551/available"); msg.Payload != "online" {
		t.Errorf("ups2 available = %q, want online", msg.Payload)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ff := &apcupsd.FakeFetcher{Responses: map[string][]byte{"ups1:3551": sampleStatus()}}
	poller := &apcupsd.Poller{Fetcher: ff, StripUnits: true}
	srv := httptest.NewServer(newMux(newRegistry(poller, mustTargets(t, "ups1", "ups2"), testLog), testLog))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`apcupsd_model_info{host="ups1:3551",model="Back-UPS RS 900G"} 1`,
		`apcupsd_status{host="ups1:3551",status="ONLINE"} 1`,
		`apcupsd_line_volts{host="ups1:3551"} 230`,
		`apcupsd_exporter_scrape_errors_total 1`,
		`apcupsd_exporter_build_info`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
	if strings.Contains(text, `host="ups2:3551"`) {
		t.Error("failing host ups2 should be absent")
	}
	if strings.Contains(text, "go_goroutines") {
		t.Error("go runtime metrics should not be registered")
	}
}

func TestLandingPage(t *testing.T) {
	srv := httptest.NewServer(newMux(newRegistry(&apcupsd.Poller{Fetcher: &apcupsd.FakeFetcher{}}, nil, testLog), testLog))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `href="/metrics"`) {
		t.Errorf("landing page missing metrics link: %s", body)
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged without verbose: %q", buf.String())
	}

	newLogger(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug not logged with verbose: %q", buf.String())
	}
}
