package timeouts

import (
	"testing"
	"time"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second})
	if Short() != 7*time.Second {
		t.Errorf("Short() = %v, want 7s", Short())
	}
	if Long() != Defaults.Long {
		t.Errorf("Long() = %v, want default %v", Long(), Defaults.Long)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Cleanup(Reset)
	t.Setenv("SHEPHERD_TIMEOUT_MEDIUM", "3s")
	t.Setenv("SHEPHERD_TIMEOUT_BATCH", "not-a-duration")
	t.Setenv("SHEPHERD_TIMEOUT_PING", "-1s")

	if n := ConfigureFromEnv(); n != 1 {
		t.Errorf("ConfigureFromEnv() = %d, want 1", n)
	}
	if Medium() != 3*time.Second {
		t.Errorf("Medium() = %v, want 3s", Medium())
	}
	if Batch() != Defaults.Batch || Ping() != Defaults.Ping {
		t.Error("invalid values should keep defaults")
	}
}
