package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != EnvDevelopment || !cfg.IsDevelopment() {
		t.Errorf("env = %q", cfg.Env)
	}
	if cfg.Port != "5000" || cfg.DB.Driver != "mysql" {
		t.Errorf("port %q driver %q", cfg.Port, cfg.DB.Driver)
	}
	if cfg.JWT.ExpiresIn != "15m" || cfg.JWT.RefreshExpiresIn != "7d" || cfg.JWT.RefreshCap != 5 {
		t.Errorf("jwt = %+v", cfg.JWT)
	}
	if cfg.JWT.SweepInterval != time.Hour || cfg.JWT.Rotate {
		t.Errorf("sweep %v rotate %v", cfg.JWT.SweepInterval, cfg.JWT.Rotate)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", " Production ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("CORS_ORIGINS", "https://a.dev,https://b.dev")
	t.Setenv("REFRESH_TOKEN_CAP", "0")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != EnvProduction || cfg.IsDevelopment() {
		t.Errorf("env = %q", cfg.Env)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DataSource() != "portfolio.db" {
		t.Errorf("driver %q dsn %q", cfg.DB.Driver, cfg.DB.DataSource())
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
	if cfg.JWT.RefreshCap != 5 {
		t.Errorf("refresh cap = %d", cfg.JWT.RefreshCap)
	}
	if cfg.RateLimit.Capacity != 1 || cfg.RateLimit.TTL != 10*time.Second {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secrets": {"JWT_SECRET": "", "JWT_REFRESH_SECRET": ""},
		"bad env":         {"APP_ENV": "staging"},
		"bad driver":      {"DB_DRIVER": "postgres"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("APP_PORT=8088\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_PORT", "")
	os.Unsetenv("APP_PORT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8088" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected an error for a missing env file")
	}
}

func TestMySQLDataSource(t *testing.T) {
	d := DBConfig{Driver: "mysql", User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "portfolio"}
	dsn := d.DataSource()
	if !strings.HasPrefix(dsn, "app:pw@tcp(db:3306)/portfolio?") || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("dsn = %q", dsn)
	}
	d.DSN = "custom"
	if d.DataSource() != "custom" {
		t.Fatal("explicit DSN ignored")
	}
}
