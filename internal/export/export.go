// Package export writes browse results to the object store as Parquet.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/tablelens/tablelens/internal/storage"
)

const (
	contentType          = "application/vnd.apache.parquet"
	DefaultPresignExpiry = 15 * time.Minute
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
}

type parquetRow struct {
	RowIndex int64  `parquet:"row_index"`
	RowJSON  string `parquet:"row_json"`
}

// EncodeRows encodes each row as a JSON object whose keys follow the column
// order of the result set.
func EncodeRows(columns []string, rows [][]any) (EncodeResult, error) {
	if len(columns) == 0 {
		return EncodeResult{}, fmt.Errorf("columns are required")
	}

	encoded := make([]parquetRow, 0, len(rows))
	for index, row := range rows {
		if len(row) != len(columns) {
			return EncodeResult{}, fmt.Errorf("row %d has %d values for %d columns", index, len(row), len(columns))
		}
		payload, err := rowJSON(columns, row)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encode row %d: %w", index, err)
		}
		encoded = append(encoded, parquetRow{RowIndex: int64(index), RowJSON: payload})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if _, err := writer.Write(encoded); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{Data: buf.Bytes(), RecordCount: int64(len(encoded))}, nil
}

func rowJSON(columns []string, row []any) (string, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte('{')
	for i, column := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return "", err
		}
		value, err := json.Marshal(row[i])
		if err != nil {
			return "", fmt.Errorf("column %q: %w", column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

type Result struct {
	ID          string    `json:"export_id"`
	ObjectKey   string    `json:"object_key"`
	RecordCount int64     `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

type Exporter struct {
	Store         storage.ObjectStore
	PresignExpiry time.Duration
	Now           func() time.Time
	NewID         func() uuid.UUID
}

func NewExporter(store storage.ObjectStore) *Exporter {
	return &Exporter{
		Store:         store,
		PresignExpiry: DefaultPresignExpiry,
		Now:           func() time.Time { return time.Now().UTC() },
		NewID:         uuid.New,
	}
}

// Export encodes rows and uploads them under a dated exports/ key. A failed
// presign leaves DownloadURL empty; the object itself stays in place.
func (e *Exporter) Export(ctx context.Context, table string, columns []string, rows [][]any) (Result, error) {
	if e.Store == nil {
		return Result{}, fmt.Errorf("object store is required")
	}

	encoded, err := EncodeRows(columns, rows)
	if err != nil {
		return Result{}, err
	}

	now := e.Now()
	id := e.NewID()
	key, err := storage.BuildExportPath(table, now, id)
	if err != nil {
		return Result{}, err
	}

	info, err := e.Store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: contentType})
	if err != nil {
		return Result{}, fmt.Errorf("upload export: %w", err)
	}

	result := Result{
		ID:          id.String(),
		ObjectKey:   key,
		RecordCount: encoded.RecordCount,
		SizeBytes:   int64(len(encoded.Data)),
		ExportedAt:  now,
	}
	if info.Size > 0 {
		result.SizeBytes = info.Size
	}
	if e.PresignExpiry > 0 {
		if signed, err := e.Store.PresignGet(ctx, key, e.PresignExpiry); err == nil {
			result.DownloadURL = signed
		}
	}
	return result, nil
}

// Object is an export opened for download. Callers must close Body.
type Object struct {
	Key          string
	ContentType  string
	Size         int64
	LastModified time.Time
	Body         io.ReadCloser
}

// Open stats key and then streams it. Keys outside the export layout report
// storage.ErrInvalidExportKey; missing objects report storage.ErrObjectNotFound.
func (e *Exporter) Open(ctx context.Context, key string) (Object, error) {
	parsed, err := e.exportKey(key)
	if err != nil {
		return Object{}, err
	}
	info, err := e.Store.Stat(ctx, parsed)
	if err != nil {
		return Object{}, err
	}
	body, err := e.Store.Get(ctx, parsed)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Key:          parsed,
		ContentType:  contentType,
		Size:         info.Size,
		LastModified: info.LastModified,
		Body:         body,
	}, nil
}

// Delete removes an export. Unlike the store, a missing key is an error here
// so callers can tell a typo from a completed cleanup.
func (e *Exporter) Delete(ctx context.Context, key string) error {
	parsed, err := e.exportKey(key)
	if err != nil {
		return err
	}
	if _, err := e.Store.Stat(ctx, parsed); err != nil {
		return err
	}
	return e.Store.Delete(ctx, parsed)
}

func (e *Exporter) exportKey(key string) (string, error) {
	if e.Store == nil {
		return "", fmt.Errorf("object store is required")
	}
	parsed, err := storage.ParseExportPath(key)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}
