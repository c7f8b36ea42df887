package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"TEAMWEAR_STOREFRONT_URL": "https://shop.example/",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storefront.BaseURL != "https://shop.example" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Storefront.BaseURL)
	}
	if cfg.Widget.QuantityMode != "free" || cfg.Widget.DefaultQuantity != 10 {
		t.Errorf("unexpected quantity defaults: %+v", cfg.Widget)
	}
	if cfg.Widget.MessageTTL != 5*time.Second || cfg.Widget.ResetDelay != 2*time.Second {
		t.Errorf("unexpected widget timings: %+v", cfg.Widget)
	}
	if cfg.Widget.MaxProperties != 100 || cfg.Widget.MaxPropertyLength != 255 {
		t.Errorf("unexpected property limits: %+v", cfg.Widget)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("unexpected session ttl: %s", cfg.Sessions.IdleTTL)
	}
	if cfg.PubSub.Enabled() {
		t.Errorf("expected pubsub disabled without topic")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %s", cfg.Log.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["TEAMWEAR_SERVER_PORT"] = "9090"
	env["TEAMWEAR_QUANTITY_MODE"] = "SIZES"
	env["TEAMWEAR_DEFAULT_QUANTITY"] = "15"
	env["TEAMWEAR_RESET_DELAY"] = "3s"
	env["TEAMWEAR_BREAKPOINTS_OVERRIDE"] = "yes"
	env["TEAMWEAR_PUBSUB_CART_TOPIC"] = "cart-updated"
	env["GOOGLE_CLOUD_PROJECT"] = "teamwear-dev"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Widget.QuantityMode != "sizes" || cfg.Widget.DefaultQuantity != 15 {
		t.Errorf("unexpected widget overrides: %+v", cfg.Widget)
	}
	if cfg.Widget.ResetDelay != 3*time.Second || !cfg.Widget.BreakpointsOverride {
		t.Errorf("unexpected widget overrides: %+v", cfg.Widget)
	}
	if !cfg.PubSub.Enabled() || cfg.PubSub.ProjectID != "teamwear-dev" {
		t.Errorf("expected pubsub project from GOOGLE_CLOUD_PROJECT, got %+v", cfg.PubSub)
	}
}

func TestLoadFallsBackToPlatformPort(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "3000"
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "3000" {
		t.Fatalf("expected PORT to be honoured, got %s", cfg.Server.Port)
	}
}

func TestLoadDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nTEAMWEAR_STOREFRONT_URL=\"https://dotenv.example\"\nexport TEAMWEAR_LOG_LEVEL=debug\nTEAMWEAR_DEFAULT_QUANTITY=20\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"TEAMWEAR_DEFAULT_QUANTITY": "30"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storefront.BaseURL != "https://dotenv.example" {
		t.Errorf("expected storefront url from .env, got %s", cfg.Storefront.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level from .env, got %s", cfg.Log.Level)
	}
	if cfg.Widget.DefaultQuantity != 30 {
		t.Errorf("expected env map to win over .env, got %d", cfg.Widget.DefaultQuantity)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "absent.env")),
		WithoutSystemEnv(),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"TEAMWEAR_SERVER_PORT":       "http",
		"TEAMWEAR_QUANTITY_MODE":     "bulk",
		"TEAMWEAR_DEFAULT_QUANTITY":  "50",
		"TEAMWEAR_MAX_QUANTITY":      "20",
		"TEAMWEAR_PUBSUB_CART_TOPIC": "cart-updated",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{
		"Server.Port":         true,
		"Storefront.BaseURL":  true,
		"Widget.QuantityMode": true,
		"Widget.MaxQuantity":  true,
		"PubSub.ProjectID":    true,
	}
	fields := validationErr.Fields()
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields %v", fields)
	}
	for _, field := range fields {
		if !want[field] {
			t.Fatalf("unexpected field %s in %v", field, fields)
		}
	}
}
