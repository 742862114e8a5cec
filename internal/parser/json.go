package parser

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/geopoi/importer/internal/encoding"
)

// JSONParser streams a top-level JSON array incrementally so memory
// stays bounded on arbitrarily large files. If incremental parsing
// fails, the whole document is parsed into memory instead and replayed
// through the same per-item logic; in that mode the root must still be
// an array or the parse fails with ErrInvalidRoot.
type JSONParser struct {
	base

	det  *encoding.Detector
	file *os.File
	dec  *json.Decoder

	// started is set once the opening array delimiter has been consumed.
	started bool
	done    bool

	// fallback holds the fully-decoded document items when streaming
	// has failed. nil while streaming.
	fallback []any
	next     int
}

// NewJSON opens path for incremental array parsing.
func NewJSON(path string, opts Options) (*JSONParser, error) {
	det := &encoding.Detector{MinConfidence: opts.MinEncodingConfidence}
	if _, _, err := det.Detect(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open json file: %w", err)
	}

	return &JSONParser{
		base: newBase(path, opts.BatchSize, "json"),
		det:  det,
		file: f,
		dec:  json.NewDecoder(det.Reader(f)),
	}, nil
}

// Next assembles the next batch of valid records.
func (p *JSONParser) Next() ([]Record, error) {
	if p.done {
		return nil, io.EOF
	}

	if p.fallback != nil {
		return p.nextFromFallback()
	}

	if !p.started {
		tok, err := p.dec.Token()
		if err != nil || tok != json.Delim('[') {
			return p.enterFallback()
		}
		p.started = true
	}

	batch := make([]Record, 0, p.batchSize)

	for p.dec.More() {
		var item map[string]any
		if err := p.dec.Decode(&item); err != nil {
			// A desynchronized stream cannot be resumed; reparse the
			// whole document instead.
			return p.enterFallback()
		}

		rec, ok := p.accept(extractJSON(item), itemWhere(item))
		if !ok {
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			return batch, nil
		}
	}

	p.done = true
	p.log.Info("json parsing complete", "processed", p.processed)
	if len(batch) > 0 {
		return batch, nil
	}
	return nil, io.EOF
}

// enterFallback abandons streaming, decodes the entire document, and
// replays it from the start. Counters and errors accumulated during the
// aborted streaming pass are reset so the replay is authoritative.
func (p *JSONParser) enterFallback() ([]Record, error) {
	p.log.Info("streaming failed, attempting standard JSON parsing")

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		p.done = true
		return nil, fmt.Errorf("rewind json file: %w", err)
	}

	data, err := io.ReadAll(p.det.Reader(p.file))
	if err != nil {
		p.done = true
		return nil, fmt.Errorf("read json file: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		p.done = true
		return nil, fmt.Errorf("invalid json file: %w", err)
	}

	items, ok := doc.([]any)
	if !ok {
		p.done = true
		p.log.Error("json file does not contain an array at root level")
		return nil, ErrInvalidRoot
	}

	p.fallback = items
	p.next = 0
	p.processed = 0
	p.errs = nil

	return p.nextFromFallback()
}

func (p *JSONParser) nextFromFallback() ([]Record, error) {
	batch := make([]Record, 0, p.batchSize)

	for p.next < len(p.fallback) {
		entry := p.fallback[p.next]
		p.next++

		item, ok := entry.(map[string]any)
		if !ok {
			p.recordError(fmt.Sprintf("item %d", p.next), "not a JSON object", nil)
			continue
		}

		rec, accepted := p.accept(extractJSON(item), itemWhere(item))
		if !accepted {
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			return batch, nil
		}
	}

	p.done = true
	p.log.Info("json parsing complete", "processed", p.processed)
	if len(batch) > 0 {
		return batch, nil
	}
	return nil, io.EOF
}

// extractJSON maps one JSON object into the canonical raw shape.
// Coordinates are nested under a "coordinates" object in this format.
func extractJSON(item map[string]any) map[string]any {
	raw := map[string]any{
		"id":          item["id"],
		"name":        item["name"],
		"category":    item["category"],
		"ratings":     item["ratings"],
		"description": item["description"],
	}
	if coords, ok := item["coordinates"].(map[string]any); ok {
		raw["latitude"] = coords["latitude"]
		raw["longitude"] = coords["longitude"]
	}
	return raw
}

func itemWhere(item map[string]any) string {
	return fmt.Sprintf("item %v", item["id"])
}

// Close releases the underlying file.
func (p *JSONParser) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
