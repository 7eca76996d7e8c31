package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// OutputManager writes the event log and window stats to CSV files
// under a directory, writing each file's header only once and
// appending rows after.
type OutputManager struct {
	dir string

	eventsFile *os.File
	statsFile  *os.File

	eventsHeaderWritten bool
	statsHeaderWritten  bool
}

// NewOutputManager creates dir and opens events.csv/window_stats.csv
// inside it. Returns nil, nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	eventsFile, err := os.Create(filepath.Join(dir, "events.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating events.csv: %w", err)
	}
	om.eventsFile = eventsFile

	statsFile, err := os.Create(filepath.Join(dir, "window_stats.csv"))
	if err != nil {
		om.eventsFile.Close()
		return nil, fmt.Errorf("creating window_stats.csv: %w", err)
	}
	om.statsFile = statsFile

	return om, nil
}

// WriteEvents appends a batch of events to events.csv.
func (om *OutputManager) WriteEvents(events []Event) error {
	if om == nil || len(events) == 0 {
		return nil
	}
	if !om.eventsHeaderWritten {
		if err := gocsv.Marshal(events, om.eventsFile); err != nil {
			return fmt.Errorf("writing events header: %w", err)
		}
		om.eventsHeaderWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(events, om.eventsFile)
}

// WriteWindowStats appends a batch of window stats to window_stats.csv.
func (om *OutputManager) WriteWindowStats(stats []WindowStats) error {
	if om == nil || len(stats) == 0 {
		return nil
	}
	if !om.statsHeaderWritten {
		if err := gocsv.Marshal(stats, om.statsFile); err != nil {
			return fmt.Errorf("writing window stats header: %w", err)
		}
		om.statsHeaderWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(stats, om.statsFile)
}

// Close closes the underlying files. Safe to call on a nil receiver.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	if err := om.eventsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := om.statsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
