package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("WINDOW_STEP", "10")
	t.Setenv("WINDOW_MAX", "nope")
	t.Setenv("JWT_ACCESS_EXPIRY", "90m")

	cfg := Load()
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.WindowStep != 10 || cfg.WindowMax != 200 {
		t.Errorf("window step/max = %d/%d", cfg.WindowStep, cfg.WindowMax)
	}
	if cfg.JWTAccessExpiry != 90*time.Minute {
		t.Errorf("JWTAccessExpiry = %s", cfg.JWTAccessExpiry)
	}
}

func TestClampWindow(t *testing.T) {
	cfg := &Config{WindowDefault: 5, WindowMax: 50}
	tests := []struct{ in, want int }{
		{0, 5},
		{-3, 5},
		{12, 12},
		{500, 50},
	}
	for _, tt := range tests {
		if got := cfg.ClampWindow(tt.in); got != tt.want {
			t.Errorf("ClampWindow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadFilter(t *testing.T) {
	t.Setenv("FILTER_BANNED_WORDS", " Gossip, ,slander ")
	t.Setenv("FILTER_BLOCK_LINKS", "false")
	t.Setenv("FILTER_BLOCK_CONTACT", "maybe")
	t.Setenv("FILTER_MAX_REPEAT", "0")
	t.Setenv("FILTER_MAX_SHOUTED", "-1")

	f := Load().Filter
	if len(f.BannedWords) != 2 || f.BannedWords[0] != "gossip" || f.BannedWords[1] != "slander" {
		t.Errorf("BannedWords = %q", f.BannedWords)
	}
	if f.BlockLinks {
		t.Error("BlockLinks not overridden")
	}
	if !f.BlockContact {
		t.Error("invalid FILTER_BLOCK_CONTACT should keep the default")
	}
	if f.MaxRepeat != 0 {
		t.Errorf("MaxRepeat = %d, want 0", f.MaxRepeat)
	}
	if f.MaxShouted != 3 {
		t.Errorf("MaxShouted = %d, want default 3", f.MaxShouted)
	}
}
