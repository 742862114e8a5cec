package parser

import (
	"errors"
	"io"
	"testing"
)

const jsonSample = `[
  {
    "id": 1,
    "name": "Central Park",
    "category": "park",
    "coordinates": {"latitude": 40.78, "longitude": -73.97},
    "ratings": [4.5, 5.0],
    "description": "Large urban park"
  },
  {
    "id": 2,
    "name": "City Museum",
    "category": "museum",
    "coordinates": {"latitude": 38.63, "longitude": -90.19},
    "ratings": [3.0, null, 4.0]
  },
  {
    "id": 3,
    "name": "No Coordinates",
    "category": "mystery",
    "ratings": [1.0]
  },
  {
    "id": 4,
    "name": "Harbor View",
    "category": "viewpoint",
    "coordinates": {"latitude": 47.60, "longitude": -122.33}
  }
]`

func TestJSONParser_Streaming(t *testing.T) {
	path := writeTempFile(t, "pois.json", jsonSample)

	p, err := NewJSON(path, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}
	defer p.Close()

	sizes, all := drain(t, p)

	// Item 3 has no coordinates object and is skipped.
	if len(all) != 3 {
		t.Fatalf("total records = %d, want 3", len(all))
	}
	wantSizes := []int{2, 1}
	if len(sizes) != 2 || sizes[0] != wantSizes[0] || sizes[1] != wantSizes[1] {
		t.Errorf("batch sizes = %v, want %v", sizes, wantSizes)
	}

	first := all[0]
	if first.ExternalID != "1" {
		t.Errorf("ExternalID = %q, want %q", first.ExternalID, "1")
	}
	if first.Latitude != 40.78 || first.Longitude != -73.97 {
		t.Errorf("coordinates = (%v, %v), want (40.78, -73.97)", first.Latitude, first.Longitude)
	}
	if first.Description != "Large urban park" {
		t.Errorf("Description = %q, want %q", first.Description, "Large urban park")
	}

	// Null rating elements are filtered, not fatal.
	second := all[1]
	if len(second.Ratings) != 2 || second.Ratings[0] != 3.0 || second.Ratings[1] != 4.0 {
		t.Errorf("Ratings = %v, want [3 4]", second.Ratings)
	}

	// Absent ratings field yields an empty slice.
	if len(all[2].Ratings) != 0 {
		t.Errorf("record 4 Ratings = %v, want empty", all[2].Ratings)
	}

	if p.Processed() != 3 {
		t.Errorf("Processed() = %d, want 3", p.Processed())
	}
}

func TestJSONParser_NonArrayRoot(t *testing.T) {
	path := writeTempFile(t, "object.json", `{"id": 1, "name": "Not An Array"}`)

	p, err := NewJSON(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}
	defer p.Close()

	if _, err := p.Next(); !errors.Is(err, ErrInvalidRoot) {
		t.Fatalf("Next() error = %v, want ErrInvalidRoot", err)
	}
}

func TestJSONParser_MalformedDocument(t *testing.T) {
	path := writeTempFile(t, "broken.json", `[{"id": 1, "name": `)

	p, err := NewJSON(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}
	defer p.Close()

	if _, err := p.Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() error = %v, want parse failure", err)
	}
}

func TestJSONParser_EmptyArray(t *testing.T) {
	path := writeTempFile(t, "empty.json", `[]`)

	p, err := NewJSON(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}
	defer p.Close()

	if _, err := p.Next(); err != io.EOF {
		t.Fatalf("Next() error = %v, want io.EOF", err)
	}
	if p.Processed() != 0 {
		t.Errorf("Processed() = %d, want 0", p.Processed())
	}
}

func TestJSONParser_NonObjectItems(t *testing.T) {
	path := writeTempFile(t, "scalars.json", `[
  "just a string",
  {"id": 9, "name": "Valid", "category": "park",
   "coordinates": {"latitude": 1.0, "longitude": 2.0}}
]`)

	p, err := NewJSON(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}
	defer p.Close()

	_, all := drain(t, p)
	if len(all) != 1 {
		t.Fatalf("valid records = %d, want 1", len(all))
	}
	if all[0].ExternalID != "9" {
		t.Errorf("ExternalID = %q, want %q", all[0].ExternalID, "9")
	}
}
