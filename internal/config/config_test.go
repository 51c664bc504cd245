package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"SahamScope/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "yahoo" || cfg.HTTP.Addr != ":8080" || cfg.Fetch.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Schedule.Location().String() != "Asia/Jakarta" {
		t.Errorf("schedule timezone = %v", cfg.Schedule.Location())
	}
	if cfg.DefaultWindow() != (model.Window{Range: "1y", Interval: "1d"}) {
		t.Errorf("default window = %v", cfg.DefaultWindow())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
provider: Polygon
polygon:
  api_key: abc
fetch:
  chunk_size: 20
  backoff: 250ms
  cache_ttl: 90s
universes:
  - name: mine
    market: IDX
    tickers: [bbca, bbri]
schedule:
  scans:
    - cron: "0 30 16 * * 1-5"
      universe: LQ45
      notify: true
logging:
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "polygon" || cfg.Polygon.APIKey != "abc" {
		t.Errorf("provider not loaded: %q %q", cfg.Provider, cfg.Polygon.APIKey)
	}
	if cfg.Fetch.ChunkSize != 20 || cfg.Fetch.Backoff != 250*time.Millisecond || cfg.Fetch.CacheTTL != 90*time.Second {
		t.Errorf("fetch not loaded: %+v", cfg.Fetch)
	}
	if len(cfg.Universes) != 1 || cfg.Universes[0].Tickers[1] != "bbri" {
		t.Errorf("universes not loaded: %+v", cfg.Universes)
	}
	scan := cfg.Schedule.Scans[0]
	if scan.Name != "LQ45" || scan.Range != "1y" || !scan.Notify {
		t.Errorf("scheduled scan defaults not applied: %+v", scan)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "provider: yahoo\ntelegram:\n  bot_token: file-token\n  chat_id: \"1\"\n")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("PROVIDER", "ALPACA")
	t.Setenv("APCA_API_KEY_ID", "k")
	t.Setenv("APCA_API_SECRET_KEY", "s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "env-token" || cfg.HTTP.Addr != ":9999" || cfg.Provider != "alpaca" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Alpaca.APIKey != "k" || cfg.Alpaca.APISecret != "s" {
		t.Errorf("alpaca credentials not applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
provider: bloomberg
defaults:
  range: 7y
telegram:
  bot_token: only-token
schedule:
  timezone: Mars/Olympus
  scans:
    - universe: LQ45
logging:
  level: loud
  format: xml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"provider \"bloomberg\"", "defaults", "telegram.bot_token and telegram.chat_id", "schedule.timezone", "schedule.scans[0]", "logging.level", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if !errors.Is(err, model.ErrInvalidWindow) {
		t.Error("window errors should stay matchable")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "provider: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}
