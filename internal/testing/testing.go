// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
)

// NewTestDB creates an in-memory SQLite database with migrations applied. It is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// CreateArtist stores an artist named username with an email derived from it.
func CreateArtist(t *testing.T, db *sql.DB, username string) *models.Artist {
	t.Helper()

	artist := models.NewArtist(0, username, username+"@example.com")
	if err := repositories.NewArtistRepository(db).Create(artist); err != nil {
		t.Fatalf("failed to create artist %s: %v", username, err)
	}
	return artist
}

// ReportBuilder writes delimited royalty reports for import tests.
type ReportBuilder struct {
	buf    bytes.Buffer
	writer *csv.Writer
}

// NewReport starts a comma separated report with the given header.
func NewReport(header ...string) *ReportBuilder {
	return NewDelimitedReport(',', header...)
}

// NewDelimitedReport starts a report separated by comma (tab, semicolon, ...) with the given header.
func NewDelimitedReport(comma rune, header ...string) *ReportBuilder {
	b := &ReportBuilder{}
	b.writer = csv.NewWriter(&b.buf)
	b.writer.Comma = comma
	b.Row(header...)
	return b
}

// Row appends a data row.
func (b *ReportBuilder) Row(values ...string) *ReportBuilder {
	_ = b.writer.Write(values)
	return b
}

// Bytes returns the report content.
func (b *ReportBuilder) Bytes() []byte {
	b.writer.Flush()
	return b.buf.Bytes()
}

// Reader returns the report content as a reader.
func (b *ReportBuilder) Reader() io.Reader {
	return bytes.NewReader(b.Bytes())
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// FReader simulates a failure while reading an upload body
type FReader struct{}

func (f *FReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FReader) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustWriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
