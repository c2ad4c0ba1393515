package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wordstory/internal/domain"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	// Chmod so the umask does not mask the mode under test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Client.JoinPollInterval != time.Second {
		t.Errorf("JoinPollInterval = %v, want 1s", cfg.Client.JoinPollInterval)
	}
	if cfg.Client.JoinMaxMisses != 5 {
		t.Errorf("JoinMaxMisses = %d, want 5", cfg.Client.JoinMaxMisses)
	}
	if got := cfg.Client.JoinTimeout(); got != 5*time.Second {
		t.Errorf("JoinTimeout = %v, want 5s", got)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by default")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != Defaults().Server.URL {
		t.Errorf("Server.URL = %q, want default", cfg.Server.URL)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  url: "wss://story.example.com/ws"
  dial_timeout: 3s
client:
  join_poll_interval: 250ms
  join_max_misses: 8
  send_rate: 4
  send_burst: 2
logger:
  level: "debug"
  format: "json"
store:
  enabled: false
`, 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "wss://story.example.com/ws" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v, want 3s", cfg.Server.DialTimeout)
	}
	if cfg.Client.JoinPollInterval != 250*time.Millisecond || cfg.Client.JoinMaxMisses != 8 {
		t.Errorf("Client = %+v", cfg.Client)
	}
	if cfg.Client.SendRate != 4 || cfg.Client.SendBurst != 2 {
		t.Errorf("send limit = %v/%d", cfg.Client.SendRate, cfg.Client.SendBurst)
	}
	if cfg.Logger.Format != "json" {
		t.Errorf("Logger.Format = %q", cfg.Logger.Format)
	}
	if cfg.Store.Enabled {
		t.Error("store should be disabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Metrics.Addr != Defaults().Metrics.Addr {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map", 0600)
	_, err := Load(path)
	if !errors.Is(err, domain.ErrConfigLoad) {
		t.Errorf("err = %v, want ErrConfigLoad", err)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, "server:\n  url: \"http://wrong\"\n", 0600)
	_, err := Load(path)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assertContains(t, err.Error(), "server.url scheme must be ws or wss")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORDSTORY_SERVER_URL", "ws://10.0.0.2:9000/ws")
	t.Setenv("WORDSTORY_LOGGER_LEVEL", "debug")
	t.Setenv("WORDSTORY_CLIENT_JOIN_POLL_INTERVAL", "500ms")
	t.Setenv("WORDSTORY_CLIENT_JOIN_MAX_MISSES", "3")
	t.Setenv("WORDSTORY_METRICS_ENABLED", "true")
	t.Setenv("WORDSTORY_STORE_PATH", "/tmp/stats.db")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Server.URL != "ws://10.0.0.2:9000/ws" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Client.JoinPollInterval != 500*time.Millisecond {
		t.Errorf("JoinPollInterval = %v", cfg.Client.JoinPollInterval)
	}
	if cfg.Client.JoinMaxMisses != 3 {
		t.Errorf("JoinMaxMisses = %d", cfg.Client.JoinMaxMisses)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
	if cfg.Store.Path != "/tmp/stats.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("WORDSTORY_CLIENT_JOIN_MAX_MISSES", "lots")
	t.Setenv("WORDSTORY_SERVER_DIAL_TIMEOUT", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Client.JoinMaxMisses != 5 {
		t.Errorf("JoinMaxMisses = %d, want default 5", cfg.Client.JoinMaxMisses)
	}
	if cfg.Server.DialTimeout != 10*time.Second {
		t.Errorf("DialTimeout = %v, want default", cfg.Server.DialTimeout)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "token-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecryptValue(encrypted, "wrong-pass")
	if !errors.Is(err, domain.ErrDecryption) {
		t.Errorf("err = %v, want ErrDecryption", err)
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "abcdef"},
		{"bad salt", "zz:00"},
		{"bad ciphertext", "00:zz"},
		{"too short", "00112233445566778899aabbccddeeff:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptValue(tt.input, "pass"); !errors.Is(err, domain.ErrDecryption) {
				t.Errorf("DecryptValue(%q) err = %v, want ErrDecryption", tt.input, err)
			}
		})
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "test-load-key"
	encrypted, err := EncryptValue("bearer-secret", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	path := writeConfig(t, "server:\n  token: \"enc:"+encrypted+"\"\n", 0600)

	t.Setenv(KeyEnv, passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Token != "bearer-secret" {
		t.Errorf("Token = %q, want %q", cfg.Server.Token, "bearer-secret")
	}
}

func TestLoadEncryptedTokenWithoutKey(t *testing.T) {
	path := writeConfig(t, "server:\n  token: \"enc:00:00\"\n", 0600)
	t.Setenv(KeyEnv, "")

	_, err := Load(path)
	if !errors.Is(err, domain.ErrDecryption) {
		t.Errorf("err = %v, want ErrDecryption", err)
	}
}

func TestLoadDecryptSecretsError(t *testing.T) {
	path := writeConfig(t, "server:\n  token: \"enc:invalid-not-hex\"\n", 0600)
	t.Setenv(KeyEnv, "some-passphrase")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error from decrypt secrets")
	}
	assertContains(t, err.Error(), "server.token")
}

func TestValidatePermissions(t *testing.T) {
	tests := []struct {
		perm os.FileMode
		ok   bool
	}{
		{0600, true},
		{0644, true},
		{0640, true},
		{0664, false},
		{0666, false},
	}
	for _, tt := range tests {
		path := writeConfig(t, "logger:\n  level: info\n", tt.perm)
		err := validatePermissions(path)
		if tt.ok && err != nil {
			t.Errorf("%o should pass: %v", tt.perm, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%o should fail", tt.perm)
		}
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := writeConfig(t, "logger:\n  level: info\n", 0666)
	if _, err := Load(path); !errors.Is(err, domain.ErrConfigLoad) {
		t.Errorf("err = %v, want ErrConfigLoad", err)
	}
}

func TestLoadReadError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read mode 0000 files")
	}
	path := writeConfig(t, "logger:\n  level: info\n", 0000)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unreadable file")
	}
}

func TestDefaultPath(t *testing.T) {
	if !strings.HasSuffix(DefaultPath(), "config.yaml") {
		t.Errorf("DefaultPath = %q", DefaultPath())
	}
}
