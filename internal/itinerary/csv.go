package itinerary

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// CSVLookup serves itineraries parsed once from a train details CSV
type CSVLookup struct {
	stations map[string][]models.StationItineraryEntry
}

// Ensure CSVLookup implements Lookup
var _ Lookup = (*CSVLookup)(nil)

// NewCSVLookup loads the train details CSV at path
func NewCSVLookup(path string) (*CSVLookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open itinerary CSV: %w", err)
	}
	defer f.Close()

	lookup, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Loaded itineraries for %d trains from %s", len(lookup.stations), path)
	return lookup, nil
}

// ParseCSV builds a lookup from CSV rows. Headers such as "Train No" or
// "Station Code" are normalized to snake_case before matching.
func ParseCSV(r io.Reader) (*CSVLookup, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read itinerary header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}
	for _, required := range []string{"train_no", "seq", "station_code"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("itinerary CSV is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	stations := make(map[string][]models.StationItineraryEntry)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read itinerary line %d: %w", line, err)
		}

		trainNumber := NormalizeTrainNumber(field(row, "train_no"))
		if trainNumber == "" {
			continue
		}

		seq, err := strconv.Atoi(field(row, "seq"))
		if err != nil {
			logrus.Debugf("Skipping itinerary line %d: bad sequence %q", line, field(row, "seq"))
			continue
		}

		stations[trainNumber] = append(stations[trainNumber], models.StationItineraryEntry{
			TrainNumber:    trainNumber,
			TrainName:      field(row, "train_name"),
			StationCode:    field(row, "station_code"),
			StationName:    field(row, "station_name"),
			SequenceNumber: seq,
		})
	}

	return &CSVLookup{stations: stations}, nil
}

// GetStations returns a copy of the itinerary for a train
func (l *CSVLookup) GetStations(ctx context.Context, trainNumber string) ([]models.StationItineraryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := l.stations[NormalizeTrainNumber(trainNumber)]
	out := make([]models.StationItineraryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// NormalizeTrainNumber strips whitespace and the leading quote some exports add
func NormalizeTrainNumber(value string) string {
	return strings.TrimLeft(strings.TrimSpace(value), "'")
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	return strings.Join(strings.Fields(name), "_")
}
