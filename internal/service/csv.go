package service

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"example.com/jodi/services/whatsapp/internal/parser"
	"github.com/pkg/errors"
)

var csvHeader = []string{"timestamp", "group_name", "user_phone_hash", "event_type"}

// WriteCSV writes events to the debug CSV, identifiers in clear text. The
// file is truncated first; columns mirror the raw_whatsapp_logs table.
func WriteCSV(path string, events []parser.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create CSV directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, ev := range events {
		record := []string{
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			ev.GroupName,
			ev.UserIdentifier,
			ev.EventType,
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write CSV record")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV")
	}

	return nil
}
