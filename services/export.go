package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"bolig_scrooper/models"
)

// PropertySink receives records and sales of a finished run.
type PropertySink interface {
	UpsertProperty(ctx context.Context, source string, rec *models.PropertyRecord) error
	ReplaceSales(ctx context.Context, summary models.PropertySummary) error
	RecordRun(ctx context.Context, run *models.ScrapeRun) error
}

// ArtifactUploader stores an output file for a run and returns its key.
type ArtifactUploader interface {
	UploadFile(ctx context.Context, runID, localPath string) (string, error)
}

// ExportService pushes finished runs to the optional export targets.
// Either target may be nil.
type ExportService struct {
	sink     PropertySink
	uploader ArtifactUploader
}

func NewExportService(sink PropertySink, uploader ArtifactUploader) *ExportService {
	return &ExportService{sink: sink, uploader: uploader}
}

// Enabled reports whether any export target is configured.
func (s *ExportService) Enabled() bool {
	return s.sink != nil || s.uploader != nil
}

type ExportStats struct {
	Exported int
	Failed   int
	Uploaded []string
}

// ExportRecords upserts every record and then the run itself. A record that
// fails is logged and counted; the export continues with the next one.
func (s *ExportService) ExportRecords(ctx context.Context, run *models.ScrapeRun, recs []*models.PropertyRecord) (ExportStats, error) {
	var stats ExportStats
	if s.sink == nil {
		return stats, nil
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.sink.UpsertProperty(ctx, run.SiteID, rec); err != nil {
			log.Printf("Export of %s failed: %v", rec.ID, err)
			stats.Failed++
			continue
		}
		stats.Exported++
	}

	if err := s.sink.RecordRun(ctx, run); err != nil {
		return stats, fmt.Errorf("record run: %w", err)
	}
	log.Printf("Exported %d records (%d failed) for run %s", stats.Exported, stats.Failed, run.UUID)
	return stats, nil
}

// ExportSummaries replaces the stored sale history of every summary.
func (s *ExportService) ExportSummaries(ctx context.Context, summaries []models.PropertySummary) (ExportStats, error) {
	var stats ExportStats
	if s.sink == nil {
		return stats, nil
	}

	for _, sum := range summaries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.sink.ReplaceSales(ctx, sum); err != nil {
			log.Printf("Sales export of %s failed: %v", sum.PropertyID, err)
			stats.Failed++
			continue
		}
		stats.Exported++
	}
	return stats, nil
}

// UploadOutputs uploads each existing file in paths under runID. Missing
// files are skipped.
func (s *ExportService) UploadOutputs(ctx context.Context, runID string, paths ...string) ([]string, error) {
	if s.uploader == nil {
		return nil, nil
	}

	var keys []string
	var errs []error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		key, err := s.uploader.UploadFile(ctx, runID, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", p, err))
			continue
		}
		log.Printf("Uploaded %s", key)
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}
