package seed

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.TableName != "events" || cfg.Rows != 1000 || cfg.BatchSize != 200 {
		t.Fatalf("cfg = %#v", cfg)
	}
	if !strings.HasPrefix(cfg.DSN, "duckdb://") {
		t.Fatalf("DSN = %q", cfg.DSN)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"TABLELENS_SEED_DSN":              "postgres://app:secret@db:5432/app",
		"TABLELENS_SEED_TABLE":            "orders",
		"TABLELENS_SEED_ROWS":             "42",
		"TABLELENS_SEED_BATCH_SIZE":       "7",
		"TABLELENS_SEED_USER_CARDINALITY": "3",
		"TABLELENS_SEED_DROP_EXISTING":    "true",
		"TABLELENS_SEED_SEED":             "12345",
		"TABLELENS_SEED_TIMEOUT":          "30s",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.DSN != "postgres://app:secret@db:5432/app" || cfg.TableName != "orders" {
		t.Fatalf("cfg = %#v", cfg)
	}
	if cfg.Rows != 42 || cfg.BatchSize != 7 || cfg.UserCardinality != 3 {
		t.Fatalf("cfg = %#v", cfg)
	}
	if !cfg.DropExisting || cfg.Seed != 12345 || cfg.Timeout != 30*time.Second {
		t.Fatalf("cfg = %#v", cfg)
	}
}

func TestLoadConfigFromEnvValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad table", env: map[string]string{"TABLELENS_SEED_TABLE": "drop table"}, want: "TABLELENS_SEED_TABLE"},
		{name: "empty dsn", env: map[string]string{"TABLELENS_SEED_DSN": " "}, want: "TABLELENS_SEED_DSN"},
		{name: "zero batch", env: map[string]string{"TABLELENS_SEED_BATCH_SIZE": "0"}, want: "TABLELENS_SEED_BATCH_SIZE"},
		{name: "negative rows", env: map[string]string{"TABLELENS_SEED_ROWS": "-1"}, want: "TABLELENS_SEED_ROWS"},
		{name: "bad seed", env: map[string]string{"TABLELENS_SEED_SEED": "x"}, want: "TABLELENS_SEED_SEED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFromEnv(mapLookup(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
