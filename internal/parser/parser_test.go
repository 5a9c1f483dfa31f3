package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTextParserReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &TextParser{}
	res, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if res.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.PageCount)
	}
}

func TestTextParserSupportedFormats(t *testing.T) {
	p := &TextParser{}
	formats := p.SupportedFormats()
	if len(formats) != 1 || formats[0] != "txt" {
		t.Errorf("SupportedFormats = %v, want [txt]", formats)
	}
}

func TestRegistryDispatchesKnownFormats(t *testing.T) {
	r := NewRegistry()
	for _, format := range []string{"txt", "pdf"} {
		if _, err := r.Get(format); err != nil {
			t.Errorf("Get(%q): %v", format, err)
		}
	}
}

func TestRegistryRejectsUnknownFormat(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("docx"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
