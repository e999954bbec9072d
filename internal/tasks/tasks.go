package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/royalty/internal/metrics"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/reports"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
)

// UploadStore persists upload status and counters.
type UploadStore interface {
	Create(upload *models.Upload) error
	Update(upload *models.Upload) error
}

// PlatformResolver finds or creates platforms by report name.
type PlatformResolver interface {
	GetOrCreate(name string) (*models.Platform, error)
}

// AlbumResolver finds or creates an artist's albums by title.
type AlbumResolver interface {
	GetOrCreate(artistID, title string) (*models.Album, error)
}

// TrackResolver finds or creates an artist's tracks by name.
type TrackResolver interface {
	GetOrCreate(artistID, name, albumID, externalID string) (*models.Track, error)
}

// StatementStore stores statements keyed by their source row hash.
type StatementStore interface {
	Create(statement *models.RoyaltyStatement) error
	ExistsByHash(hash string) (bool, error)
}

// Stores bundles the persistence the importer depends on.
type Stores struct {
	Uploads    UploadStore
	Platforms  PlatformResolver
	Albums     AlbumResolver
	Tracks     TrackResolver
	Statements StatementStore
}

// NewStores builds [Stores] backed by the SQLite repositories.
func NewStores(db *sql.DB) Stores {
	return Stores{
		Uploads:    repositories.NewUploadRepository(db),
		Platforms:  repositories.NewPlatformRepository(db),
		Albums:     repositories.NewAlbumRepository(db),
		Tracks:     repositories.NewTrackRepository(db),
		Statements: repositories.NewStatementRepository(db),
	}
}

// ImportOptions tune an [ImportEngine]. Zero values fall back to the defaults of [shared.DefaultConfig].
type ImportOptions struct {
	DefaultCurrency  string // Currency for rows without one
	MaxErrorLog      int    // Error log lines kept per upload
	ProgressInterval int    // Rows between counter flushes
	MaxBytes         int64  // Largest accepted report; zero means unlimited
}

// ImportOptionsFromConfig reads import options from the ingest and server sections of config.
func ImportOptionsFromConfig(config *shared.Config) ImportOptions {
	return ImportOptions{
		DefaultCurrency:  config.Ingest.DefaultCurrency,
		MaxErrorLog:      config.Ingest.MaxErrorLog,
		ProgressInterval: config.Ingest.ProgressInterval,
		MaxBytes:         int64(config.Server.MaxUploadMB) << 20,
	}
}

// ImportResult summarizes one finished import.
type ImportResult struct {
	Upload     *models.Upload
	Format     reports.Format
	Imported   int
	Duplicates int
	Errors     int
	Duration   time.Duration
}

// ImportEngine turns uploaded reports into royalty statements.
type ImportEngine struct {
	stores Stores
	opts   ImportOptions
	logger *log.Logger
}

// NewImportEngine creates an engine. A nil logger discards log output.
func NewImportEngine(stores Stores, opts ImportOptions, logger *log.Logger) *ImportEngine {
	defaults := shared.DefaultConfig()
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = defaults.Ingest.DefaultCurrency
	}
	if opts.MaxErrorLog <= 0 {
		opts.MaxErrorLog = defaults.Ingest.MaxErrorLog
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaults.Ingest.ProgressInterval
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &ImportEngine{stores: stores, opts: opts, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ImportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run imports one report for artist.
//
// The returned error is non-nil only when the report as a whole could not be imported: unreadable content,
// missing columns, cancellation or a storage failure. The upload record reflects the outcome in every case
// where it could be created, so the result is returned alongside such errors.
func (e *ImportEngine) Run(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	artist *models.Artist,
	filename string,
	r io.Reader,
) (*ImportResult, error) {
	started := time.Now()
	logger := e.logger.With("artist", artist.Username(), "file", filename)

	upload := models.NewUpload(0, artist.ID(), filename)
	if err := e.stores.Uploads.Create(upload); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	result := &ImportResult{Upload: upload}
	defer func() {
		result.Duration = time.Since(started)
		m := metrics.Get()
		m.ImportDuration.Observe(result.Duration.Seconds())
		m.Uploads.WithLabelValues(string(upload.Status())).Inc()
		metrics.ObserveRows(result.Imported, result.Duplicates, result.Errors)
		e.sendProgress(progress, finishedUpdate(upload))
	}()

	e.sendProgress(progress, readingReportUpdate(filename))

	report, err := e.read(r, filename)
	if err != nil {
		logger.Warn("report rejected", "error", err)
		return result, e.fail(upload, err)
	}
	result.Format = report.Format

	upload.Start(len(report.Rows))
	if err := e.stores.Uploads.Update(upload); err != nil {
		return result, fmt.Errorf("failed to start upload: %w", err)
	}
	e.sendProgress(progress, reportReadUpdate(string(report.Format), len(report.Rows)))
	logger.Info("importing report", "format", report.Format, "rows", len(report.Rows))

	batch := newImportBatch(e, artist, report)
	errlog := newErrorLog(e.opts.MaxErrorLog)
	var success, failures, duplicates int

	flush := func() error {
		upload.UpdateStats(success, failures, duplicates)
		result.Imported += success
		result.Errors += failures
		result.Duplicates += duplicates
		success, failures, duplicates = 0, 0, 0

		upload.SetErrorLog(errlog.String())
		if err := e.stores.Uploads.Update(upload); err != nil {
			return fmt.Errorf("failed to update upload: %w", err)
		}
		e.sendProgress(progress, importRowsUpdate(upload))
		return nil
	}

	for i, row := range report.Rows {
		if err := ctx.Err(); err != nil {
			if flushErr := flush(); flushErr != nil {
				return result, flushErr
			}
			logger.Warn("import cancelled", "processed", upload.ProcessedRows(), "total", upload.TotalRows())
			return result, e.fail(upload, fmt.Errorf("import cancelled after %d of %d rows: %w",
				upload.ProcessedRows(), upload.TotalRows(), err))
		}

		switch outcome, err := batch.importRow(upload, row); {
		case err != nil:
			failures++
			errlog.Add(err.Error())
			logger.Debug("row rejected", "line", row.Line, "error", err)
		case outcome == outcomeDuplicate:
			duplicates++
		default:
			success++
		}

		if (i+1)%e.opts.ProgressInterval == 0 {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	logger.Info("report imported",
		"status", upload.Status(),
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"errors", result.Errors)
	return result, nil
}

// read buffers the report, enforcing the size limit, and parses it.
func (e *ImportEngine) read(r io.Reader, filename string) (*reports.Report, error) {
	if e.opts.MaxBytes > 0 {
		r = io.LimitReader(r, e.opts.MaxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if e.opts.MaxBytes > 0 && int64(len(data)) > e.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", shared.ErrUploadTooLarge, filename, e.opts.MaxBytes)
	}

	return reports.Open(data, filename)
}

// fail marks the upload failed with cause in its error log and returns cause.
func (e *ImportEngine) fail(upload *models.Upload, cause error) error {
	upload.Fail(cause.Error())
	if err := e.stores.Uploads.Update(upload); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to mark upload failed: %w", err))
	}
	return cause
}

type rowOutcome int

const (
	outcomeImported rowOutcome = iota
	outcomeDuplicate
)

// importBatch caches entity lookups and hashes for the rows of one report.
type importBatch struct {
	engine    *ImportEngine
	artist    *models.Artist
	report    *reports.Report
	platforms map[string]*models.Platform
	albums    map[string]*models.Album
	tracks    map[string]*models.Track
	seen      map[string]bool
}

func newImportBatch(e *ImportEngine, artist *models.Artist, report *reports.Report) *importBatch {
	return &importBatch{
		engine:    e,
		artist:    artist,
		report:    report,
		platforms: map[string]*models.Platform{},
		albums:    map[string]*models.Album{},
		tracks:    map[string]*models.Track{},
		seen:      map[string]bool{},
	}
}

func (b *importBatch) importRow(upload *models.Upload, raw reports.Row) (rowOutcome, error) {
	stores := b.engine.stores

	row, err := b.report.Normalize(raw, b.engine.opts.DefaultCurrency)
	if err != nil {
		return 0, err
	}
	rowErr := func(format string, args ...any) error {
		return &reports.RowError{Line: row.Line, Reason: fmt.Sprintf(format, args...)}
	}

	platform, err := b.platform(row.Platform)
	if err != nil {
		return 0, rowErr("cannot resolve platform %q: %v", row.Platform, err)
	}

	hash := models.StatementHash(b.artist.ID(), row.Track, platform.Name(), row.StatementLine)
	if b.seen[hash] {
		return outcomeDuplicate, nil
	}

	exists, err := stores.Statements.ExistsByHash(hash)
	if err != nil {
		return 0, rowErr("%v", err)
	}
	if exists {
		b.seen[hash] = true
		return outcomeDuplicate, nil
	}

	var albumID string
	if row.Album != "" {
		album, err := b.album(row.Album)
		if err != nil {
			return 0, rowErr("cannot resolve album %q: %v", row.Album, err)
		}
		albumID = album.ID()
	}

	track, err := b.track(row.Track, albumID, row.ISRC)
	if err != nil {
		return 0, rowErr("cannot resolve track %q: %v", row.Track, err)
	}

	statement := models.NewRoyaltyStatement(0, b.artist.ID(), track.ID(), platform.ID(), row.StatementLine)
	statement.SetUploadID(upload.ID())
	statement.SetSourceRowHash(hash)

	if err := stores.Statements.Create(statement); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			b.seen[hash] = true
			return outcomeDuplicate, nil
		}
		return 0, rowErr("%v", err)
	}
	// Only stored hashes count, so a later copy of a failed row fails again.
	b.seen[hash] = true
	return outcomeImported, nil
}

func (b *importBatch) platform(name string) (*models.Platform, error) {
	key := strings.ToLower(name)
	if p, ok := b.platforms[key]; ok {
		return p, nil
	}
	p, err := b.engine.stores.Platforms.GetOrCreate(name)
	if err != nil {
		return nil, err
	}
	b.platforms[key] = p
	return p, nil
}

func (b *importBatch) album(title string) (*models.Album, error) {
	if a, ok := b.albums[title]; ok {
		return a, nil
	}
	a, err := b.engine.stores.Albums.GetOrCreate(b.artist.ID(), title)
	if err != nil {
		return nil, err
	}
	b.albums[title] = a
	return a, nil
}

func (b *importBatch) track(name, albumID, isrc string) (*models.Track, error) {
	if t, ok := b.tracks[name]; ok && (albumID == "" || t.AlbumID() != "") && (isrc == "" || t.ExternalID() != "") {
		return t, nil
	}
	t, err := b.engine.stores.Tracks.GetOrCreate(b.artist.ID(), name, albumID, isrc)
	if err != nil {
		return nil, err
	}
	b.tracks[name] = t
	return t, nil
}

// errorLog keeps the first max row errors and counts the rest.
type errorLog struct {
	max     int
	lines   []string
	dropped int
}

func newErrorLog(max int) *errorLog {
	return &errorLog{max: max}
}

func (l *errorLog) Add(line string) {
	if len(l.lines) < l.max {
		l.lines = append(l.lines, line)
		return
	}
	l.dropped++
}

func (l *errorLog) String() string {
	if l.dropped == 0 {
		return strings.Join(l.lines, "\n")
	}
	return strings.Join(l.lines, "\n") + fmt.Sprintf("\n... and %d more", l.dropped)
}
