package storage

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidExportKey = errors.New("invalid export key")

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns exports/<table>/date=YYYY-MM-DD/<id>.parquet, dated
// in UTC.
func BuildExportPath(tableName string, exportedAt time.Time, id uuid.UUID) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if id == uuid.Nil {
		return "", fmt.Errorf("export id is required")
	}

	ts := exportedAt.UTC()
	return path.Join(
		"exports",
		tableName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		id.String()+".parquet",
	), nil
}

// ExportKey is a parsed export object key.
type ExportKey struct {
	Table string
	Date  time.Time
	ID    uuid.UUID
}

// ParseExportPath accepts only keys BuildExportPath could have produced.
func ParseExportPath(key string) (ExportKey, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(key), "/"), "/")
	if len(parts) != 4 || parts[0] != "exports" {
		return ExportKey{}, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}
	if validatePathComponent(parts[1], "table name") != nil {
		return ExportKey{}, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}
	date, err := time.Parse("2006-01-02", strings.TrimPrefix(parts[2], "date="))
	if err != nil || !strings.HasPrefix(parts[2], "date=") {
		return ExportKey{}, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}
	name, ok := strings.CutSuffix(parts[3], ".parquet")
	if !ok {
		return ExportKey{}, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}
	id, err := uuid.Parse(name)
	if err != nil || id == uuid.Nil || id.String() != name {
		return ExportKey{}, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}
	return ExportKey{Table: parts[1], Date: date, ID: id}, nil
}

// String renders the canonical key.
func (k ExportKey) String() string {
	key, _ := BuildExportPath(k.Table, k.Date, k.ID)
	return key
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
