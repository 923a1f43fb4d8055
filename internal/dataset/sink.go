package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
)

// Sink receives finished trajectories.
type Sink interface {
	Write(ctx context.Context, traj core.Trajectory) error
	Close() error
}

const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// NewFileSink opens a JSONL (append) or JSON (array, written on Close) sink.
func NewFileSink(path string, out config.OutputConfig) (Sink, error) {
	out = out.Normalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	switch out.Format {
	case FormatJSONL:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &jsonlSink{f: f, w: bufio.NewWriter(f), fields: out.Fields}, nil
	case FormatJSON:
		return &jsonSink{path: path, fields: out.Fields}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", out.Format)
	}
}

type jsonlSink struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	fields config.OutputFields
}

func (s *jsonlSink) Write(_ context.Context, traj core.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	enc.SetEscapeHTML(false)
	for _, rec := range traj.Records(s.fields) {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *jsonlSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.w.Flush(), s.f.Close())
}

type jsonSink struct {
	mu      sync.Mutex
	path    string
	fields  config.OutputFields
	records []core.Record
}

func (s *jsonSink) Write(_ context.Context, traj core.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, traj.Records(s.fields)...)
	return nil
}

func (s *jsonSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records
	if recs == nil {
		recs = []core.Record{}
	}
	raw, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(raw, '\n'), 0o644)
}

// MultiSink fans a trajectory out to several sinks.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, traj core.Trajectory) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, traj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// WriteJSONL writes arbitrary values one per line, replacing the file.
func WriteJSONL[T any](path string, items []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			f.Close()
			return err
		}
	}
	return errors.Join(w.Flush(), f.Close())
}
