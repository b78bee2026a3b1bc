package appconfig

import (
	"testing"
	"time"

	"pkt.systems/snippad/schema"
)

func TestDefaultConfigMatchesServiceDefaults(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	core := cfg.CoreConfig()
	if core.DebounceDelay != schema.DefaultDebounceDelay {
		t.Fatalf("expected debounce %v, got %v", schema.DefaultDebounceDelay, core.DebounceDelay)
	}
	if core.ExecuteTimeout != schema.DefaultExecuteTimeout {
		t.Fatalf("expected execute timeout %v, got %v", schema.DefaultExecuteTimeout, core.ExecuteTimeout)
	}
	if core.HistoryMax != schema.DefaultHistoryMax {
		t.Fatalf("expected history max %d, got %d", schema.DefaultHistoryMax, core.HistoryMax)
	}
	if cfg.Drop.Dir != "" {
		t.Fatalf("expected drop folder disabled by default")
	}
}

func TestPistonClientConfigCarriesRetries(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Piston.Retries = 5
	client := cfg.PistonClientConfig()
	if client.Retry.MaxRetries != 5 {
		t.Fatalf("expected 5 retries, got %d", client.Retry.MaxRetries)
	}
	if client.Retry.BaseDelay <= 0 || client.Retry.BaseDelay > time.Second {
		t.Fatalf("unexpected base delay %v", client.Retry.BaseDelay)
	}
}
