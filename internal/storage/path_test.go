package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 22, 5, 0, 0, time.FixedZone("x", -5*3600))
	id := uuid.MustParse("6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f")
	key, err := BuildExportPath("orders", ts, id)
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/orders/date=2026-02-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildExportPathAcceptsUnderscoreTables(t *testing.T) {
	if _, err := BuildExportPath("_audit_log", time.Now(), uuid.New()); err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
}

func TestBuildExportPathRejectsInvalidInput(t *testing.T) {
	if _, err := BuildExportPath("../oops", time.Now(), uuid.New()); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildExportPath("orders", time.Now(), uuid.Nil); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestParseExportPathRoundTripsBuiltKey(t *testing.T) {
	id := uuid.MustParse("6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f")
	built, err := BuildExportPath("events", time.Date(2026, time.February, 20, 8, 0, 0, 0, time.UTC), id)
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	parsed, err := ParseExportPath("/" + built)
	if err != nil {
		t.Fatalf("ParseExportPath() error = %v", err)
	}
	if parsed.Table != "events" || parsed.ID != id || parsed.String() != built {
		t.Fatalf("ParseExportPath() = %+v", parsed)
	}
}

func TestParseExportPathRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"",
		"exports/events/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet",
		"imports/events/date=2026-02-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet",
		"exports/../date=2026-02-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet",
		"exports/events/date=2026-13-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet",
		"exports/events/2026-02-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.parquet",
		"exports/events/date=2026-02-20/6f1c0e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f.csv",
		"exports/events/date=2026-02-20/not-a-uuid.parquet",
		"exports/events/date=2026-02-20/6F1C0E1A-3A4B-4C5D-8E9F-0A1B2C3D4E5F.parquet",
	} {
		if _, err := ParseExportPath(key); !errors.Is(err, ErrInvalidExportKey) {
			t.Fatalf("ParseExportPath(%q) error = %v, want %v", key, err, ErrInvalidExportKey)
		}
	}
}
