package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tablelens/tablelens/internal/filter"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	DSN             string
	TableName       string
	Rows            int
	BatchSize       int
	UserCardinality int
	DropExisting    bool
	Seed            int64
	Timeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		DSN:             "duckdb:///tmp/tablelens-demo.db",
		TableName:       "events",
		Rows:            1000,
		BatchSize:       200,
		UserCardinality: 200,
		DropExisting:    false,
		Seed:            time.Now().UTC().UnixNano(),
		Timeout:         time.Minute,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "TABLELENS_SEED_DSN", &cfg.DSN); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLELENS_SEED_TABLE", &cfg.TableName); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLELENS_SEED_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLELENS_SEED_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLELENS_SEED_USER_CARDINALITY", &cfg.UserCardinality); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLELENS_SEED_DROP_EXISTING", &cfg.DropExisting); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "TABLELENS_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLELENS_SEED_TIMEOUT", &cfg.Timeout); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DSN) == "" {
		return Config{}, fmt.Errorf("TABLELENS_SEED_DSN is required")
	}
	if !filter.ValidIdentifier(cfg.TableName) {
		return Config{}, fmt.Errorf("TABLELENS_SEED_TABLE %q is not a valid identifier", cfg.TableName)
	}
	if cfg.Rows < 0 {
		return Config{}, fmt.Errorf("TABLELENS_SEED_ROWS must be >= 0")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("TABLELENS_SEED_BATCH_SIZE must be > 0")
	}
	if cfg.UserCardinality <= 0 {
		return Config{}, fmt.Errorf("TABLELENS_SEED_USER_CARDINALITY must be > 0")
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("TABLELENS_SEED_TIMEOUT must be > 0")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
