// Package dataset reads labelled records from files for offline training.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/record/model"
)

const (
	LabelColumn    = "willFailInNext2Hours"
	PipelineColumn = "pipelineId"
	// DefaultPipeline names records that do not say which pipeline they
	// belong to.
	DefaultPipeline = "default"
)

var ErrEmpty = errors.New("dataset has no records")

type jsonRecord struct {
	PipelineID string         `json:"pipelineId"`
	Features   feature.Vector `json:"features"`
	WillFail   *bool          `json:"willFailInNext2Hours"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ReadJSON parses a JSON array of records shaped like
// {"pipelineId", "features": {...}, "willFailInNext2Hours", "createdAt"}.
// The pipeline and creation time are optional.
func ReadJSON(r io.Reader, now time.Time) ([]model.Record, error) {
	var raw []jsonRecord
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding json records: %w", err)
	}
	records := make([]model.Record, 0, len(raw))
	for i, item := range raw {
		if item.WillFail == nil {
			return nil, fmt.Errorf("record %d: %w", i, model.ErrMissingLabel)
		}
		for name := range item.Features {
			if _, err := feature.Index(name); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		record := newRecord(item.PipelineID, item.Features, *item.WillFail, item.CreatedAt, now)
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadCSV parses CSV content whose header names the five features and the
// label column, in any order. A pipelineId column is optional.
func ReadCSV(r io.Reader, now time.Time) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		record, err := cols.parseRow(row, now)
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadFile picks the reader by extension: .csv is CSV, anything else JSON.
// An empty path reads JSON from stdin.
func ReadFile(path string, now time.Time) ([]model.Record, error) {
	var f *os.File
	if path == "" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening records at %s: %w", path, err)
		}
		defer f.Close()
	}

	var (
		records []model.Record
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err = ReadCSV(f, now)
	} else {
		records, err = ReadJSON(f, now)
	}
	if err != nil {
		return nil, fmt.Errorf("reading records from %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

func newRecord(pipelineID string, v feature.Vector, willFail bool, createdAt, now time.Time) model.Record {
	if pipelineID == "" {
		pipelineID = DefaultPipeline
	}
	if createdAt.IsZero() {
		createdAt = now
	}
	return model.NewRecord(pipelineID, v, willFail, createdAt)
}

type columns struct {
	features [feature.Count]int
	label    int
	pipeline int
}

func parseHeader(header []string) (*columns, error) {
	cols := &columns{label: -1, pipeline: -1}
	for i := range cols.features {
		cols.features[i] = -1
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch name {
		case LabelColumn:
			cols.label = i
		case PipelineColumn:
			cols.pipeline = i
		default:
			idx, err := feature.Index(feature.Name(name))
			if err != nil {
				return nil, fmt.Errorf("header column %d: %w", i+1, err)
			}
			cols.features[idx] = i
		}
	}
	for i, col := range cols.features {
		if col < 0 {
			return nil, fmt.Errorf("header: %w: %s", feature.ErrMissingFeature, feature.Names[i])
		}
	}
	if cols.label < 0 {
		return nil, fmt.Errorf("header: %w", model.ErrMissingLabel)
	}
	return cols, nil
}

func (c *columns) parseRow(row []string, now time.Time) (model.Record, error) {
	v := make(feature.Vector, feature.Count)
	for i, col := range c.features {
		val, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return model.Record{}, fmt.Errorf("%s: %w", feature.Names[i], err)
		}
		v[feature.Names[i]] = val
	}
	label, err := strconv.ParseBool(strings.TrimSpace(row[c.label]))
	if err != nil {
		return model.Record{}, fmt.Errorf("%s: %w", LabelColumn, err)
	}
	var pipelineID string
	if c.pipeline >= 0 {
		pipelineID = strings.TrimSpace(row[c.pipeline])
	}
	record := newRecord(pipelineID, v, label, time.Time{}, now)
	if err := record.Validate(); err != nil {
		return model.Record{}, err
	}
	return record, nil
}
