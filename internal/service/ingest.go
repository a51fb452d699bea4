package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"example.com/jodi/services/whatsapp/config"
	"example.com/jodi/services/whatsapp/internal/cache"
	"example.com/jodi/services/whatsapp/internal/identity"
	"example.com/jodi/services/whatsapp/internal/messaging"
	"example.com/jodi/services/whatsapp/internal/metrics"
	"example.com/jodi/services/whatsapp/internal/models"
	"example.com/jodi/services/whatsapp/internal/parser"
	"example.com/jodi/services/whatsapp/internal/search"
	"example.com/jodi/services/whatsapp/internal/tracing"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventStore persists membership events with dedup semantics.
type EventStore interface {
	BulkInsert(ctx context.Context, events []models.GroupEvent, batchSize int) (int64, error)
}

// RunStore records ingest run audit rows.
type RunStore interface {
	Create(ctx context.Context, run *models.IngestRun) error
}

// Summary reports what a run did. It doubles as the body of the completion
// notification published to the pipeline queue.
type Summary struct {
	RunID             uuid.UUID `json:"run_id"`
	Source            string    `json:"source"`
	Files             int       `json:"files"`
	Parsed            int       `json:"events_parsed"`
	Joined            int       `json:"joined"`
	Left              int       `json:"left"`
	Added             int       `json:"added"`
	Inserted          int64     `json:"rows_inserted"`
	DuplicatesSkipped int64     `json:"duplicates_skipped"`
	LinesSkipped      int       `json:"lines_skipped"`
	DurationMs        int64     `json:"duration_ms"`
}

// Extraction is the parse phase output for one source path.
type Extraction struct {
	Events       []parser.Event
	Files        int
	LinesSkipped int
	digests      []string
}

// IngestService runs the extract-then-load flow. The event and run stores
// are nil in debug mode; the cache, mirror, queue and tracer are all
// optional and nil-safe.
type IngestService struct {
	cfg     config.Config
	events  EventStore
	runs    RunStore
	cache   *cache.RedisCache
	elastic *search.ElasticClient
	bus     messaging.ServiceBusClient
	tracer  tracing.Tracer
	metrics *metrics.Metrics
}

// NewIngestService creates a new ingest service
func NewIngestService(
	cfg config.Config,
	events EventStore,
	runs RunStore,
	redisCache *cache.RedisCache,
	elastic *search.ElasticClient,
	bus messaging.ServiceBusClient,
	tracer tracing.Tracer,
	collector *metrics.Metrics,
) *IngestService {
	return &IngestService{
		cfg:     cfg,
		events:  events,
		runs:    runs,
		cache:   redisCache,
		elastic: elastic,
		bus:     bus,
		tracer:  tracer,
		metrics: collector,
	}
}

// Extract parses every export under path (a single file or a directory of
// .txt files) into membership events with clear-text identifiers.
func (s *IngestService) Extract(ctx context.Context, path string) (*Extraction, error) {
	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	ext := &Extraction{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read export %s", file)
		}

		digest := contentDigest(data)
		if s.cache.SeenExport(ctx, digest) {
			log.Info().Str("file", filepath.Base(file)).Msg("Export unchanged since last run, skipping")
			continue
		}

		res, err := parser.Parse(bytes.NewReader(data), parser.GroupNameFromPath(file))
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("file", filepath.Base(file)).
			Int("events", len(res.Events)).
			Int("skipped_timestamps", res.SkippedTimestamps).
			Msg("Parsed export")

		ext.Events = append(ext.Events, res.Events...)
		ext.LinesSkipped += res.SkippedTimestamps
		ext.Files++
		ext.digests = append(ext.digests, digest)
	}

	return ext, nil
}

// LoadLocal runs debug mode: all extracted events, identifiers in clear
// text, written to the local CSV. The file is overwritten each run so the
// output is deterministic per invocation. No database is touched.
func (s *IngestService) LoadLocal(ctx context.Context, path string) (*Summary, error) {
	started := time.Now()

	ext, err := s.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	summary := s.newSummary(path, ext, started)

	if len(ext.Events) == 0 {
		log.Info().Msg("No membership events found")
		return summary, nil
	}

	if err := WriteCSV(s.cfg.Loader.CSVPath, ext.Events); err != nil {
		return nil, err
	}

	summary.DurationMs = time.Since(started).Milliseconds()
	log.Info().
		Int("events", summary.Parsed).
		Str("path", s.cfg.Loader.CSVPath).
		Msg("Events written to CSV")

	return summary, nil
}

// LoadProduction runs production mode: identifiers are hashed and events
// are loaded in batches with insert-and-ignore dedup semantics. A batch
// failure fails the run.
func (s *IngestService) LoadProduction(ctx context.Context, path string) (*Summary, error) {
	started := time.Now()

	txn := s.tracer.StartTransaction("whatsapp-load")
	defer s.tracer.EndTransaction(txn)

	parseSpan := s.tracer.StartSpan("parse-exports", txn)
	ext, err := s.Extract(ctx, path)
	parseSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	summary := s.newSummary(path, ext, started)

	if len(ext.Events) == 0 {
		log.Info().Msg("No membership events found")
		return summary, nil
	}

	rows := hashRows(ext.Events)

	loadSpan := s.tracer.StartSpan("load-events", txn)
	inserted, err := s.events.BulkInsert(ctx, rows, s.cfg.Loader.BatchSize)
	loadSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.SetHealth("database", false)
		return nil, err
	}

	summary.Inserted = inserted
	summary.DuplicatesSkipped = int64(len(rows)) - inserted
	summary.DurationMs = time.Since(started).Milliseconds()

	s.metrics.SetHealth("database", true)
	s.metrics.IncrementCounterBy("events_parsed", int64(summary.Parsed))
	s.metrics.IncrementCounterBy("rows_inserted", inserted)
	s.metrics.IncrementCounterBy("duplicates_skipped", summary.DuplicatesSkipped)
	s.metrics.IncrementCounterBy("lines_skipped", int64(summary.LinesSkipped))
	s.metrics.RecordTimer("load_run", time.Since(started))

	if err := s.runs.Create(ctx, summary.auditRow()); err != nil {
		log.Warn().Err(err).Msg("Failed to record ingest run")
	}

	if err := s.elastic.IndexEvents(ctx, rows); err != nil {
		log.Warn().Err(err).Msg("Failed to mirror events to Elasticsearch")
		s.tracer.RecordError(txn, err)
	}

	if s.bus != nil {
		if err := s.bus.SendMessage(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("Failed to publish run notification")
			s.tracer.RecordError(txn, err)
		}
	}

	for _, digest := range ext.digests {
		if err := s.cache.MarkExport(ctx, digest); err != nil {
			log.Warn().Err(err).Msg("Failed to mark export in cache")
		}
	}

	log.Info().
		Int64("inserted", summary.Inserted).
		Int64("duplicates_skipped", summary.DuplicatesSkipped).
		Int("lines_skipped", summary.LinesSkipped).
		Msg("Load complete")

	return summary, nil
}

func (s *IngestService) newSummary(path string, ext *Extraction, started time.Time) *Summary {
	summary := &Summary{
		RunID:        uuid.New(),
		Source:       path,
		Files:        ext.Files,
		Parsed:       len(ext.Events),
		LinesSkipped: ext.LinesSkipped,
		DurationMs:   time.Since(started).Milliseconds(),
	}
	for _, ev := range ext.Events {
		switch ev.EventType {
		case models.EventJoined:
			summary.Joined++
		case models.EventLeft:
			summary.Left++
		case models.EventAdded:
			summary.Added++
		}
	}
	return summary
}

func (sum *Summary) auditRow() *models.IngestRun {
	return &models.IngestRun{
		ID:                sum.RunID,
		Source:            sum.Source,
		Files:             sum.Files,
		EventsParsed:      sum.Parsed,
		RowsInserted:      int(sum.Inserted),
		DuplicatesSkipped: int(sum.DuplicatesSkipped),
		LinesSkipped:      sum.LinesSkipped,
		DurationMs:        sum.DurationMs,
	}
}

// hashRows converts parsed events into storable rows, applying the one-way
// identifier hash.
func hashRows(events []parser.Event) []models.GroupEvent {
	rows := make([]models.GroupEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, models.GroupEvent{
			Timestamp:     ev.Timestamp,
			GroupName:     ev.GroupName,
			UserPhoneHash: identity.Hash(ev.UserIdentifier),
			EventType:     ev.EventType,
		})
	}
	return rows
}

// collectFiles resolves the CLI path argument to the list of export files.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "path not found: %s", path)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list exports")
	}
	if len(matches) == 0 {
		return nil, errors.Errorf("no .txt files found in %s", path)
	}

	sort.Strings(matches)
	return matches, nil
}

func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
