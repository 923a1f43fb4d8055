package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
)

// Query is one input to trajectory generation.
type Query struct {
	// ID is the 1-based position in the source file.
	ID       int
	Text     string
	Metadata map[string]interface{}
}

// Request converts the query into an orchestrator request. The state key
// is left empty so each run gets a fresh one; query_id travels in metadata.
func (q Query) Request() core.TrajectoryRequest {
	return core.TrajectoryRequest{Query: q.Text, Metadata: q.Metadata}
}

// LoadQueries reads a .json file (array, {"queries": [...]} or
// {"seed_queries": [...]}) or any other file as JSONL.
func LoadQueries(path string) ([]Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(raw)
	}
	return ParseJSONL(raw)
}

// ParseJSON accepts an array or an object wrapping one.
func ParseJSON(raw []byte) ([]Query, error) {
	raw = bytes.TrimSpace(raw)
	var items []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("parse query array: %w", err)
		}
		return fromItems(items)
	}
	var wrapper struct {
		Queries     []json.RawMessage `json:"queries"`
		SeedQueries []json.RawMessage `json:"seed_queries"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("parse query file: %w", err)
	}
	switch {
	case wrapper.Queries != nil:
		items = wrapper.Queries
	case wrapper.SeedQueries != nil:
		items = wrapper.SeedQueries
	default:
		return nil, fmt.Errorf("invalid query file: expected a list, {\"queries\": [...]} or {\"seed_queries\": [...]}")
	}
	return fromItems(items)
}

// ParseJSONL reads one query per non-blank line.
func ParseJSONL(raw []byte) ([]Query, error) {
	var items []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d: invalid json", line)
		}
		items = append(items, append(json.RawMessage(nil), text...))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return fromItems(items)
}

// fromItems numbers items by position; items with no usable text are skipped
// but still consume an id.
func fromItems(items []json.RawMessage) ([]Query, error) {
	out := make([]Query, 0, len(items))
	for i, item := range items {
		id := i + 1
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if strings.TrimSpace(s) != "" {
				out = append(out, Query{ID: id, Text: s, Metadata: map[string]interface{}{"query_id": id}})
			}
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		text := firstString(obj, "transformed_query", "query", "Q")
		if text == "" {
			continue
		}
		meta := make(map[string]interface{}, len(obj)+1)
		for k, v := range obj {
			meta[k] = v
		}
		meta["query_id"] = id
		out = append(out, Query{ID: id, Text: text, Metadata: meta})
	}
	return out, nil
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// SeedTexts extracts plain seed strings, for the transform command.
func SeedTexts(qs []Query) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}
