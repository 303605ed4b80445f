package services

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"document-qa-backend/internal/config"

	"github.com/google/generative-ai-go/genai"
)

func testLoader() *Loader {
	return NewLoader(&config.Config{ChatModel: "gemini-1.5-flash"})
}

func TestLoadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("The quarterly report covers revenue and churn."), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	segments, err := testLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if !strings.Contains(segments[0].Text, "quarterly report") {
		t.Fatalf("unexpected segment text: %q", segments[0].Text)
	}
}

func TestLoadEmptyTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("   \n  "), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := testLoader().Load(context.Background(), path)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malware.exe")
	if err := os.WriteFile(path, []byte("MZ"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := testLoader().Load(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestLoadCorruptPDFFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf at all"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := testLoader().Load(context.Background(), path)
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestGeminiClientInitializedOnce(t *testing.T) {
	l := NewLoader(&config.Config{GoogleAPIKey: "test-key", ChatModel: "gemini-1.5-flash"})

	clients := make([]*genai.Client, 4)
	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := l.ensureGeminiClient(context.Background())
			if err != nil {
				t.Errorf("client init failed: %v", err)
				return
			}
			clients[i] = client
		}(i)
	}
	wg.Wait()

	if clients[0] == nil {
		t.Fatal("expected a client")
	}
	for i := 1; i < len(clients); i++ {
		if clients[i] != clients[0] {
			t.Fatalf("concurrent callers got different clients: %p vs %p", clients[i], clients[0])
		}
	}
}

func TestGeminiClientRequiresAPIKey(t *testing.T) {
	l := NewLoader(&config.Config{})
	if _, err := l.ensureGeminiClient(context.Background()); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Meeting minutes for the platform team.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Action items:</w:t></w:r><w:r><w:br/><w:t>ship the importer</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeTestDocx(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "minutes.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to add document.xml: %v", err)
	}
	if _, err := w.Write([]byte(testDocumentXML)); err != nil {
		t.Fatalf("failed to write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finalize docx: %v", err)
	}
	return path
}

func TestLoadDocx(t *testing.T) {
	path := writeTestDocx(t, t.TempDir())

	segments, err := testLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	text := segments[0].Text
	if !strings.Contains(text, "Meeting minutes for the platform team.") {
		t.Errorf("missing first paragraph in %q", text)
	}
	if !strings.Contains(text, "ship the importer") {
		t.Errorf("missing run after line break in %q", text)
	}
	if !strings.Contains(text, "\n\n") {
		t.Errorf("paragraphs should be separated by blank lines in %q", text)
	}
}

func TestLoadDocxWithoutDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hollow.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("word/styles.xml"); err != nil {
		t.Fatalf("failed to add entry: %v", err)
	}
	zw.Close()
	f.Close()

	_, err = testLoader().Load(context.Background(), path)
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestExtractWordText(t *testing.T) {
	text, err := extractWordText(strings.NewReader(testDocumentXML))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(text, "Action items:") {
		t.Fatalf("unexpected text: %q", text)
	}
	if !strings.Contains(text, "\nship the importer") {
		t.Fatalf("w:br should produce a newline, got %q", text)
	}
}
