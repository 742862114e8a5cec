package parser

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// drain reads all batches from a parser, returning batch sizes and all
// records in order.
func drain(t *testing.T, p Parser) ([]int, []Record) {
	t.Helper()
	var sizes []int
	var all []Record
	for {
		batch, err := p.Next()
		if err == io.EOF {
			return sizes, all
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		sizes = append(sizes, len(batch))
		all = append(all, batch...)
	}
}

const csvSample = `poi_id,poi_name,poi_category,poi_latitude,poi_longitude,poi_ratings
1,Central Park,park,40.78,-73.97,"{4.5,5.0}"
2,City Museum,museum,38.63,-90.19,"{3.0}"
3,Harbor View,viewpoint,47.60,-122.33,
4,Old Mill,historic,44.05,-121.31,"{4.0,4.5,3.5}"
5,River Cafe,restaurant,40.70,-73.99,"{5.0}"
`

func TestCSVParser_Batching(t *testing.T) {
	path := writeTempFile(t, "pois.csv", csvSample)

	p, err := NewCSV(path, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewCSV() error = %v", err)
	}
	defer p.Close()

	sizes, all := drain(t, p)

	wantSizes := []int{2, 2, 1}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("batch count = %d, want %d (sizes %v)", len(sizes), len(wantSizes), sizes)
	}
	for i, want := range wantSizes {
		if sizes[i] != want {
			t.Errorf("batch %d size = %d, want %d", i, sizes[i], want)
		}
	}

	if p.Processed() != 5 {
		t.Errorf("Processed() = %d, want 5", p.Processed())
	}
	if len(all) != 5 {
		t.Fatalf("total records = %d, want 5", len(all))
	}

	first := all[0]
	if first.ExternalID != "1" {
		t.Errorf("ExternalID = %q, want %q", first.ExternalID, "1")
	}
	if first.Name != "Central Park" {
		t.Errorf("Name = %q, want %q", first.Name, "Central Park")
	}
	if first.Latitude != 40.78 {
		t.Errorf("Latitude = %v, want %v", first.Latitude, 40.78)
	}
	if len(first.Ratings) != 2 || first.Ratings[0] != 4.5 {
		t.Errorf("Ratings = %v, want [4.5 5.0]", first.Ratings)
	}

	// Empty ratings cell yields an empty slice, not a skip.
	if len(all[2].Ratings) != 0 {
		t.Errorf("record 3 Ratings = %v, want empty", all[2].Ratings)
	}

	// Exhausted parser keeps returning io.EOF.
	if _, err := p.Next(); err != io.EOF {
		t.Errorf("Next() after EOF = %v, want io.EOF", err)
	}
}

func TestCSVParser_SkipsInvalidRows(t *testing.T) {
	content := `poi_id,poi_name,poi_category,poi_latitude,poi_longitude,poi_ratings
1,Good Place,park,40.0,-73.0,"{4.0}"
2,No Latitude,park,,-73.0,"{4.0}"
3,Bad Latitude,park,95.0,-73.0,"{4.0}"
4,Another Good,museum,41.0,-72.0,
`
	path := writeTempFile(t, "mixed.csv", content)

	p, err := NewCSV(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewCSV() error = %v", err)
	}
	defer p.Close()

	_, all := drain(t, p)

	if len(all) != 2 {
		t.Fatalf("valid records = %d, want 2", len(all))
	}
	if all[0].ExternalID != "1" || all[1].ExternalID != "4" {
		t.Errorf("kept records = %q, %q; want 1, 4", all[0].ExternalID, all[1].ExternalID)
	}
	if p.Processed() != 2 {
		t.Errorf("Processed() = %d, want 2", p.Processed())
	}
}

func TestCSVParser_BlankHeadersIgnored(t *testing.T) {
	content := `poi_id,,poi_name,poi_category,poi_latitude,poi_longitude
1,ignored,Town Hall,civic,50.0,8.0
`
	path := writeTempFile(t, "blankheader.csv", content)

	p, err := NewCSV(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewCSV() error = %v", err)
	}
	defer p.Close()

	_, all := drain(t, p)

	if len(all) != 1 {
		t.Fatalf("valid records = %d, want 1", len(all))
	}
	if all[0].Name != "Town Hall" {
		t.Errorf("Name = %q, want %q", all[0].Name, "Town Hall")
	}
}

func TestCSVParser_ZeroValidRecords(t *testing.T) {
	content := `poi_id,poi_name,poi_category,poi_latitude,poi_longitude
1,Nowhere,void,not-a-number,0
`
	path := writeTempFile(t, "invalid.csv", content)

	p, err := NewCSV(path, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewCSV() error = %v", err)
	}
	defer p.Close()

	batch, err := p.Next()
	if err != io.EOF {
		t.Fatalf("Next() = (%v, %v), want io.EOF", batch, err)
	}
	if p.Processed() != 0 {
		t.Errorf("Processed() = %d, want 0", p.Processed())
	}
}

func TestParser_EncodingConfidenceWired(t *testing.T) {
	opts := Options{BatchSize: 10, MinEncodingConfidence: 0.9}

	csvPath := writeTempFile(t, "pois.csv", csvSample)
	cp, err := NewCSV(csvPath, opts)
	if err != nil {
		t.Fatalf("NewCSV() error = %v", err)
	}
	defer cp.Close()
	if cp.det.MinConfidence != 0.9 {
		t.Errorf("csv detector MinConfidence = %v, want 0.9", cp.det.MinConfidence)
	}

	jsonPath := writeTempFile(t, "pois.json", `[]`)
	jp, err := ForType("json", jsonPath, opts)
	if err != nil {
		t.Fatalf("ForType() error = %v", err)
	}
	defer jp.Close()
	if got := jp.(*JSONParser).det.MinConfidence; got != 0.9 {
		t.Errorf("json detector MinConfidence = %v, want 0.9", got)
	}
}

func TestCSVParser_MissingFile(t *testing.T) {
	if _, err := NewCSV(filepath.Join(t.TempDir(), "missing.csv"), Options{}); err == nil {
		t.Fatal("NewCSV() expected error for missing file, got nil")
	}
}
