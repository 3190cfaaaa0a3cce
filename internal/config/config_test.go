// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/checkout")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)

	c, err := load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Gateway.Provider != GatewaySandbox {
		t.Fatalf("expected sandbox gateway by default, got %q", c.Gateway.Provider)
	}
	if c.Checkout.PollInterval != 3*time.Second || c.Checkout.ClientWatchdog != 15*time.Minute {
		t.Fatalf("unexpected poll settings: %v %v", c.Checkout.PollInterval, c.Checkout.ClientWatchdog)
	}
	if c.Webhook.DedupeTTL != 24*time.Hour {
		t.Fatalf("unexpected dedupe ttl %v", c.Webhook.DedupeTTL)
	}
	if !c.ManualVerifyAllowed() {
		t.Fatal("manual verify should be allowed outside production")
	}
	if c.EnforceCallbackToken() {
		t.Fatal("callback token should not be enforced in development by default")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	baseEnv(t)
	t.Setenv("CHECKOUT_MANUAL_VERIFY_ENABLED", "false")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Join([]string{
		"checkout:",
		"  unpaid_ttl: 2h",
		"  expiry_grace: 1m",
		"webhook:",
		"  enforce_token: true",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Checkout.UnpaidTTL != 2*time.Hour || c.Checkout.ExpiryGrace != time.Minute {
		t.Fatalf("file values not applied: %+v", c.Checkout)
	}
	if c.ManualVerifyAllowed() {
		t.Fatal("env override should disable manual verify")
	}
	if !c.EnforceCallbackToken() {
		t.Fatal("webhook.enforce_token should enforce outside production")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"missing database": {
			env:  map[string]string{"DATABASE_URL": ""},
			want: "DATABASE_URL",
		},
		"unknown gateway": {
			env:  map[string]string{"PAYMENT_GATEWAY": "stripe"},
			want: "unknown payment gateway",
		},
		"xendit without key": {
			env:  map[string]string{"PAYMENT_GATEWAY": "xendit"},
			want: "XENDIT_SECRET_KEY",
		},
		"production sandbox": {
			env:  map[string]string{"ENVIRONMENT": "production", "XENDIT_CALLBACK_TOKEN": "tok"},
			want: "sandbox gateway",
		},
		"zero unpaid ttl": {
			env:  map[string]string{"CHECKOUT_UNPAID_TTL": "0s"},
			want: "checkout.unpaid_ttl",
		},
		"negative expiry grace": {
			env:  map[string]string{"CHECKOUT_EXPIRY_GRACE": "-1h"},
			want: "checkout.expiry_grace",
		},
		"negative connection lifetime": {
			env:  map[string]string{"DATABASE_CONN_MAX_LIFETIME": "-1m"},
			want: "database.conn_max_lifetime",
		},
		"production without callback token": {
			env:  map[string]string{"ENVIRONMENT": "production", "PAYMENT_GATEWAY": "xendit", "XENDIT_SECRET_KEY": "sk"},
			want: "XENDIT_CALLBACK_TOKEN",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := load("")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestProductionDefaults(t *testing.T) {
	baseEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PAYMENT_GATEWAY", "xendit")
	t.Setenv("XENDIT_SECRET_KEY", "sk")
	t.Setenv("XENDIT_CALLBACK_TOKEN", "tok")

	c, err := load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ManualVerifyAllowed() {
		t.Fatal("manual verify must default off in production")
	}
	if !c.EnforceCallbackToken() {
		t.Fatal("callback token must be enforced in production")
	}
}
