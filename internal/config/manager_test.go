package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const yamlConfig = `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./test.db
  busy_timeout: 5s
sources:
  enabled: [ted, openprocure]
  rate_per_sec: 1.5
aggregator:
  adapter_timeout: 10s
  max_results: 40
scheduler:
  tick: 30s
  default_max_results: 15
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", yamlConfig))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "5s" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Sources.Enabled) != 2 || cfg.Sources.Enabled[0] != "ted" {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if cfg.Sources.RatePerSec != 1.5 {
		t.Fatalf("rate_per_sec = %v", cfg.Sources.RatePerSec)
	}
	if cfg.Aggregator.MaxResults != 40 || cfg.Scheduler.DefaultMaxResults != 15 {
		t.Fatalf("limits = %+v / %+v", cfg.Aggregator, cfg.Scheduler)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"scheduler":{"tick":"45s"},"storage":{"path":"./x.db"}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Scheduler.Tick != "45s" || cfg.Storage.Path != "./x.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"schedular":{"tick":"45s"}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"storage":{"path":"a"}}{"extra":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"storage":{"path":"./x.db"}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	first := &Config{}
	second := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(first)
	m.publish(second) // buffer full: the older update is dropped

	select {
	case got := <-ch:
		if got != second {
			t.Fatalf("received %+v, want the newest config", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(first)
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", " 1m ")
	if err != nil || d != time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for junk duration")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "10s", time.Minute); err != nil || d != 10*time.Second {
		t.Fatalf("explicit: got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", time.Minute); err == nil {
		t.Fatal("expected error for junk duration")
	}
}
