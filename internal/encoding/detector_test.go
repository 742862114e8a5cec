package encoding

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestDetector_UTF8(t *testing.T) {
	// Multibyte content pins the detection to UTF-8.
	path := writeTempFile(t, "utf8.csv", []byte("poi_id,poi_name\n1,Café München 北京 Ωμέγα\n2,Łódź Кафе\n"))

	d := &Detector{}
	charset, confidence, err := d.Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if charset != "utf-8" {
		t.Errorf("charset = %q, want %q", charset, "utf-8")
	}
	if confidence <= 0 || confidence > 1 {
		t.Errorf("confidence = %v, want in (0, 1]", confidence)
	}
}

func TestDetector_CachesResult(t *testing.T) {
	path := writeTempFile(t, "once.csv", []byte("poi_id,poi_name\n1,Café\n"))

	d := &Detector{}
	first, _, err := d.Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	// Remove the file; the cached result must still be served.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove temp file: %v", err)
	}

	second, _, err := d.Detect(path)
	if err != nil {
		t.Fatalf("Detect() on cached detector error = %v", err)
	}
	if second != first {
		t.Errorf("cached charset = %q, want %q", second, first)
	}
}

func TestDetector_EmptyFile(t *testing.T) {
	path := writeTempFile(t, "empty.csv", nil)

	d := &Detector{}
	charset, confidence, err := d.Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if charset != "utf-8" {
		t.Errorf("charset = %q, want %q", charset, "utf-8")
	}
	if confidence != 0 {
		t.Errorf("confidence = %v, want 0", confidence)
	}
}

func TestDetector_MissingFile(t *testing.T) {
	d := &Detector{}
	if _, _, err := d.Detect(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("Detect() expected error for missing file, got nil")
	}
}

func TestDetector_ReaderPassthrough(t *testing.T) {
	path := writeTempFile(t, "plain.csv", []byte("poi_id,poi_name\n1,Café\n"))

	d := &Detector{}
	if _, _, err := d.Detect(path); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	src := strings.NewReader("hello")
	out, err := io.ReadAll(d.Reader(src))
	if err != nil {
		t.Fatalf("read through detector: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("Reader output = %q, want %q", out, "hello")
	}
}

func TestCharsetReader_Latin1(t *testing.T) {
	// 0xE9 is "é" in ISO-8859-1.
	r, err := CharsetReader("iso-8859-1", strings.NewReader("Caf\xe9"))
	if err != nil {
		t.Fatalf("CharsetReader() error = %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read decoded stream: %v", err)
	}
	if string(out) != "Café" {
		t.Errorf("decoded = %q, want %q", out, "Café")
	}
}

func TestCharsetReader_Unknown(t *testing.T) {
	if _, err := CharsetReader("klingon-1", strings.NewReader("x")); err == nil {
		t.Fatal("CharsetReader() expected error for unknown charset, got nil")
	}
}
