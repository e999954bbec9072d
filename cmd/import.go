package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/desertthunder/royalty/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Import loads each report file into the artist's statements.
//
// Files are imported one after another; a failed file does not stop the rest.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one report file", shared.ErrMissingArgument)
	}

	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	engine := tasks.NewImportEngine(tasks.NewStores(db), tasks.ImportOptionsFromConfig(r.config), r.logger)

	var failed []error
	for _, path := range files {
		result, err := r.importFile(ctx, engine, artist, path)
		if err != nil {
			r.writePlain("%s %s: %v\n\n", r.styles.Err("✗"), filepath.Base(path), err)
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
			continue
		}
		r.writeImportSummary(result)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed: %w", len(failed), len(files), errors.Join(failed...))
	}
	return nil
}

func (r *Runner) importFile(ctx context.Context, engine *tasks.ImportEngine, artist *models.Artist, path string) (*tasks.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Phase {
			case tasks.ReadReport:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ImportRows:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progressCh, artist, filepath.Base(path), f)
	close(progressCh)
	wg.Wait()

	return result, err
}

func (r *Runner) writeImportSummary(result *tasks.ImportResult) {
	upload := result.Upload

	mark := r.styles.OK("✓")
	switch upload.Status() {
	case models.UploadCompletedWithErrors:
		mark = r.styles.Warn("!")
	case models.UploadFailed:
		mark = r.styles.Err("✗")
	}

	r.writePlain("%s %s: %s in %s\n", mark, upload.Filename(), upload.Status(), result.Duration.Round(time.Millisecond))
	r.writePlain("   %d imported, %d duplicates, %d errors of %d rows\n",
		result.Imported, result.Duplicates, result.Errors, upload.TotalRows())
	if errlog := upload.ErrorLog(); errlog != "" {
		r.writePlain("%s\n", r.styles.Help(errlog))
	}
	r.writePlain("\n")
}
