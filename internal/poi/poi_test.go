package poi

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew_DerivesRating(t *testing.T) {
	p, err := New("poi-1", "Central Park", "park", 40.78, -73.97,
		[]float64{4.0, 5.0, 3.0}, "Large urban park", "pois.csv", uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.AvgRating == nil {
		t.Fatal("AvgRating = nil, want 4.0")
	}
	if *p.AvgRating != 4.0 {
		t.Errorf("AvgRating = %v, want 4.0", *p.AvgRating)
	}
	if p.RatingCount != 3 {
		t.Errorf("RatingCount = %d, want 3", p.RatingCount)
	}
}

func TestNew_EmptyRatings(t *testing.T) {
	p, err := New("poi-2", "City Museum", "museum", 38.63, -90.19,
		nil, "", "pois.csv", uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.AvgRating != nil {
		t.Errorf("AvgRating = %v, want nil", *p.AvgRating)
	}
	if p.RatingCount != 0 {
		t.Errorf("RatingCount = %d, want 0", p.RatingCount)
	}
}

func TestNew_Validation(t *testing.T) {
	batchID := uuid.New()

	tests := []struct {
		name string
		make func() (*PointOfInterest, error)
	}{
		{
			name: "latitude out of range",
			make: func() (*PointOfInterest, error) {
				return New("poi-3", "Nowhere", "void", 95.0, 0, nil, "", "f.csv", batchID)
			},
		},
		{
			name: "longitude out of range",
			make: func() (*PointOfInterest, error) {
				return New("poi-4", "Nowhere", "void", 0, 181.0, nil, "", "f.csv", batchID)
			},
		},
		{
			name: "missing external id",
			make: func() (*PointOfInterest, error) {
				return New("", "Nameless", "void", 0, 0, nil, "", "f.csv", batchID)
			},
		},
		{
			name: "missing name",
			make: func() (*PointOfInterest, error) {
				return New("poi-5", "", "void", 0, 0, nil, "", "f.csv", batchID)
			},
		},
		{
			name: "rating above five",
			make: func() (*PointOfInterest, error) {
				return New("poi-6", "Overrated", "void", 0, 0, []float64{6.0}, "", "f.csv", batchID)
			},
		},
		{
			name: "zero batch id",
			make: func() (*PointOfInterest, error) {
				return New("poi-7", "Orphan", "void", 0, 0, nil, "", "f.csv", uuid.Nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.make(); err == nil {
				t.Error("New() expected validation error, got nil")
			}
		})
	}
}

func TestRecalculateRating(t *testing.T) {
	p := &PointOfInterest{Ratings: []float64{2.0, 4.0}}
	p.RecalculateRating()
	if p.AvgRating == nil || *p.AvgRating != 3.0 {
		t.Errorf("AvgRating = %v, want 3.0", p.AvgRating)
	}
	if p.RatingCount != 2 {
		t.Errorf("RatingCount = %d, want 2", p.RatingCount)
	}

	// Clearing ratings must reset both derived fields.
	p.Ratings = nil
	p.RecalculateRating()
	if p.AvgRating != nil {
		t.Errorf("AvgRating = %v, want nil", *p.AvgRating)
	}
	if p.RatingCount != 0 {
		t.Errorf("RatingCount = %d, want 0", p.RatingCount)
	}
}

func TestFileTypeFromPath(t *testing.T) {
	tests := []struct {
		path   string
		want   FileType
		wantOK bool
	}{
		{"data/pois.csv", FileTypeCSV, true},
		{"pois.JSON", FileTypeJSON, true},
		{"exports/POIS.Xml", FileTypeXML, true},
		{"pois.yaml", "", false},
		{"noextension", "", false},
	}

	for _, tt := range tests {
		got, ok := FileTypeFromPath(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FileTypeFromPath(%q) = (%q, %v), want (%q, %v)",
				tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFileType_Valid(t *testing.T) {
	for _, ft := range []FileType{FileTypeCSV, FileTypeJSON, FileTypeXML} {
		if !ft.Valid() {
			t.Errorf("FileType(%q).Valid() = false, want true", ft)
		}
	}
	if FileType("pdf").Valid() {
		t.Error(`FileType("pdf").Valid() = true, want false`)
	}
}
