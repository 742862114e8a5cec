// Package encoding sniffs the byte encoding of input files so the parsers
// can decode legacy exports (Latin-1, Windows-1252, ...) without loading
// whole files into memory.
package encoding

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// sampleSize is how many leading bytes are read for detection.
const sampleSize = 10 * 1024

// DefaultConfidence is the minimum detection confidence below which the
// detector falls back to UTF-8 rather than trusting a weak guess.
const DefaultConfidence = 0.7

// Detector infers a file's character encoding from a leading byte sample.
// The result is cached after the first call, so one Detector instance
// should be used per file.
type Detector struct {
	// MinConfidence overrides DefaultConfidence when > 0.
	MinConfidence float64

	charset    string
	confidence float64
	detected   bool
}

// Detect reads up to 10KB from the file at path and returns the detected
// charset name and the detection confidence in [0, 1]. Low-confidence
// results are replaced by "utf-8". The result is cached; subsequent calls
// return the cached value without touching the file.
func (d *Detector) Detect(path string) (string, float64, error) {
	if d.detected {
		return d.charset, d.confidence, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open for encoding detection: %w", err)
	}
	defer f.Close()

	sample := make([]byte, sampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", 0, fmt.Errorf("read encoding sample: %w", err)
	}
	sample = sample[:n]

	charset := "utf-8"
	confidence := 0.0

	if len(sample) > 0 {
		result, derr := chardet.NewTextDetector().DetectBest(sample)
		if derr == nil && result != nil {
			charset = strings.ToLower(result.Charset)
			confidence = float64(result.Confidence) / 100
		}
	}

	slog.Info("detected encoding",
		"file", path,
		"charset", charset,
		"confidence", confidence,
	)

	min := d.MinConfidence
	if min <= 0 {
		min = DefaultConfidence
	}
	if confidence < min {
		slog.Warn("low confidence in encoding detection, using utf-8",
			"file", path,
			"charset", charset,
			"confidence", confidence,
		)
		charset = "utf-8"
	}

	d.charset = charset
	d.confidence = confidence
	d.detected = true

	return d.charset, d.confidence, nil
}

// Reader wraps r with a decoder for the detected charset. UTF-8 and
// unrecognized charsets pass through unchanged. Detect must have been
// called first; otherwise the reader is returned as-is.
func (d *Detector) Reader(r io.Reader) io.Reader {
	if !d.detected || d.charset == "utf-8" || d.charset == "ascii" {
		return r
	}

	enc, err := htmlindex.Get(d.charset)
	if err != nil {
		slog.Warn("no decoder for detected charset, reading as utf-8",
			"charset", d.charset,
		)
		return r
	}

	return transform.NewReader(r, enc.NewDecoder())
}

// CharsetReader adapts htmlindex lookup to the xml.Decoder.CharsetReader
// signature so XML documents can declare non-UTF-8 encodings.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported xml charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
