package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"example.com/jodi/services/whatsapp/config"
	"example.com/jodi/services/whatsapp/internal/identity"
	"example.com/jodi/services/whatsapp/internal/metrics"
	"example.com/jodi/services/whatsapp/internal/models"
	"example.com/jodi/services/whatsapp/internal/tracing"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock stores for testing
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) BulkInsert(ctx context.Context, events []models.GroupEvent, batchSize int) (int64, error) {
	args := m.Called(ctx, events, batchSize)
	return args.Get(0).(int64), args.Error(1)
}

type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) Create(ctx context.Context, run *models.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func newTestService(t *testing.T, cfg config.Config, events EventStore, runs RunStore) *IngestService {
	t.Helper()
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	return NewIngestService(cfg, events, runs, nil, nil, nil, tracer, metrics.NewMetrics())
}

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProductionHashesIdentifiers(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "Chat de WhatsApp con Vecinos.txt",
		"1/1/24, 10:00 - Juan joined using this group's invite link\n"+
			"1/1/24, 10:05 - +52 55 1234 5678 salió del grupo\n")

	mockEvents := new(MockEventStore)
	mockRuns := new(MockRunStore)

	mockEvents.On("BulkInsert", mock.Anything, mock.AnythingOfType("[]models.GroupEvent"), 500).
		Return(int64(2), nil)
	mockRuns.On("Create", mock.Anything, mock.AnythingOfType("*models.IngestRun")).Return(nil)

	cfg := config.Config{Loader: config.LoaderConfig{BatchSize: 500}}
	svc := newTestService(t, cfg, mockEvents, mockRuns)

	summary, err := svc.LoadProduction(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Parsed)
	require.Equal(t, int64(2), summary.Inserted)
	require.Zero(t, summary.DuplicatesSkipped)
	require.Equal(t, 1, summary.Joined)
	require.Equal(t, 1, summary.Left)

	rows := mockEvents.Calls[0].Arguments.Get(1).([]models.GroupEvent)
	require.Len(t, rows, 2)
	require.Equal(t, identity.Hash("Juan"), rows[0].UserPhoneHash)
	require.Equal(t, identity.Hash("+52 55 1234 5678"), rows[1].UserPhoneHash)
	for _, row := range rows {
		require.Len(t, row.UserPhoneHash, identity.HashLength)
		require.Equal(t, "Vecinos", row.GroupName)
	}

	mockEvents.AssertExpectations(t)
	mockRuns.AssertExpectations(t)
}

func TestLoadProductionCountsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "group.txt",
		"1/1/24, 10:00 - Juan joined using this group's invite link\n"+
			"2/1/24, 10:00 - Maria left\n"+
			"3/1/24, 10:00 - Pedro left\n")

	mockEvents := new(MockEventStore)
	mockRuns := new(MockRunStore)

	// The store reports only one row actually inserted.
	mockEvents.On("BulkInsert", mock.Anything, mock.Anything, 500).Return(int64(1), nil)
	mockRuns.On("Create", mock.Anything, mock.Anything).Return(nil)

	cfg := config.Config{Loader: config.LoaderConfig{BatchSize: 500}}
	svc := newTestService(t, cfg, mockEvents, mockRuns)

	summary, err := svc.LoadProduction(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Inserted)
	require.Equal(t, int64(2), summary.DuplicatesSkipped)
}

func TestLoadLocalWritesCSVWithoutDBWrites(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "WhatsApp Chat with Neighbors.txt",
		"1/1/24, 10:00 - Juan joined using this group's invite link\n")
	writeExport(t, dir, "Chat de WhatsApp con Vecinos.txt",
		"1/1/24, 11:00 - +52 55 1234 5678 salió del grupo\n")

	mockEvents := new(MockEventStore)
	mockRuns := new(MockRunStore)

	csvPath := filepath.Join(t.TempDir(), "out", "whatsapp_logs.csv")
	cfg := config.Config{Loader: config.LoaderConfig{BatchSize: 500, CSVPath: csvPath}}
	svc := newTestService(t, cfg, mockEvents, mockRuns)

	summary, err := svc.LoadLocal(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Files)
	require.Equal(t, 2, summary.Parsed)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"timestamp", "group_name", "user_phone_hash", "event_type"}, records[0])

	// Identifiers stay in clear text in debug mode.
	var identifiers []string
	for _, rec := range records[1:] {
		identifiers = append(identifiers, rec[2])
	}
	require.Contains(t, identifiers, "Juan")
	require.Contains(t, identifiers, "525512345678")

	mockEvents.AssertNotCalled(t, "BulkInsert", mock.Anything, mock.Anything, mock.Anything)
	mockRuns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoadLocalOverwritesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "group.txt",
		"1/1/24, 10:00 - Juan joined using this group's invite link\n")

	csvPath := filepath.Join(t.TempDir(), "whatsapp_logs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("stale,data\n"), 0o644))

	cfg := config.Config{Loader: config.LoaderConfig{BatchSize: 500, CSVPath: csvPath}}
	svc := newTestService(t, cfg, nil, nil)

	_, err := svc.LoadLocal(context.Background(), dir)
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.NotContains(t, string(data), "stale")
}

func TestExtractMissingPath(t *testing.T) {
	svc := newTestService(t, config.Config{}, nil, nil)
	_, err := svc.Extract(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestExtractEmptyDirectory(t *testing.T) {
	svc := newTestService(t, config.Config{}, nil, nil)
	_, err := svc.Extract(context.Background(), t.TempDir())
	require.Error(t, err)
}
