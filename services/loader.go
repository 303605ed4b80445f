package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"
	"document-qa-backend/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/ledongthuc/pdf"
	"google.golang.org/api/option"
)

var (
	// ErrUnsupportedType is returned for file extensions with no loader.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrUnreadableDocument is returned when every extraction method failed.
	ErrUnreadableDocument = errors.New("could not process this document - the file may be corrupted or password-protected")

	// ErrEmptyDocument is returned when extraction succeeded but produced no
	// text, e.g. an image-only PDF.
	ErrEmptyDocument = errors.New("no text content extracted - the document may contain only images")
)

// Loader routes a file to a parser by extension. PDFs go through an ordered
// fallback chain of extraction methods.
type Loader struct {
	config *config.Config

	// The Gemini client is created lazily on the first upload that needs it
	// and shared by concurrent uploads afterwards.
	geminiOnce   sync.Once
	geminiClient *genai.Client
	geminiErr    error
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{config: cfg}
}

// Load produces ordered (text, page) segments for the file, or fails with a
// descriptive error. Empty segments are dropped.
func (l *Loader) Load(ctx context.Context, filePath string) ([]models.Segment, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var segments []models.Segment
	var err error
	switch ext {
	case ".pdf":
		segments, err = l.loadPDF(ctx, filePath)
	case ".txt":
		segments, err = l.loadText(filePath)
	case ".docx", ".doc":
		segments, err = l.loadWord(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, err
	}

	segments = dropEmptySegments(segments)
	if len(segments) == 0 {
		return nil, ErrEmptyDocument
	}
	return segments, nil
}

// loadPDF tries each extraction method in order until one yields text. Each
// failed attempt is logged with its own reason.
func (l *Loader) loadPDF(ctx context.Context, filePath string) ([]models.Segment, error) {
	if !l.validatePDF(filePath) {
		return nil, fmt.Errorf("%w: PDF validation failed", ErrUnreadableDocument)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	methods := []struct {
		name    string
		extract func(context.Context, []byte) ([]models.Segment, error)
	}{
		{"go-pdf", l.extractWithGoPDF},
		{"poppler", l.extractWithPoppler},
		{"gemini", l.extractWithGemini},
	}

	var lastErr error
	for _, method := range methods {
		segments, err := method.extract(ctx, content)
		if err != nil {
			logger.Warn("PDF extraction method failed", "method", method.name, "error", err.Error())
			lastErr = err
			continue
		}
		segments = dropEmptySegments(segments)
		if len(segments) == 0 {
			logger.Warn("PDF extraction produced no text", "method", method.name)
			lastErr = ErrEmptyDocument
			continue
		}
		logger.Info("PDF extracted", "method", method.name, "segments", len(segments))
		return segments, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, lastErr)
}

// validatePDF does a lightweight open to short-circuit before expensive
// extraction. Falls back to a magic-header check when the reader balks at a
// file that is still recoverable by other methods.
func (l *Loader) validatePDF(filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return false
	}

	if _, err := pdf.NewReader(f, stat.Size()); err == nil {
		return true
	}

	header := make([]byte, 1024)
	n, err := f.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return false
	}
	return bytes.Contains(header[:n], []byte("%PDF-"))
}

// extractWithGoPDF uses the in-process PDF library, one segment per page.
func (l *Loader) extractWithGoPDF(_ context.Context, content []byte) ([]models.Segment, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var segments []models.Segment
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err.Error())
			continue
		}
		segments = append(segments, models.Segment{Text: text, Page: i})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}
	return segments, nil
}

// extractWithPoppler shells out to pdftotext; pages arrive separated by form
// feeds.
func (l *Loader) extractWithPoppler(ctx context.Context, content []byte) ([]models.Segment, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := stdout.String()
	if len(text) == 0 {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}

	var segments []models.Segment
	for i, pageText := range strings.Split(text, "\f") {
		segments = append(segments, models.Segment{Text: pageText, Page: i + 1})
	}
	return segments, nil
}

// extractWithGemini uploads the PDF to the Gemini file API and asks the
// model to transcribe it. Last resort: slow and rate-limited, but handles
// scanned documents the local parsers cannot.
func (l *Loader) extractWithGemini(ctx context.Context, content []byte) ([]models.Segment, error) {
	client, err := l.ensureGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	file, err := client.UploadFile(ctx, "", bytes.NewReader(content), &genai.UploadFileOptions{
		MIMEType: "application/pdf",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to gemini: %w", err)
	}
	defer client.DeleteFile(ctx, file.Name)

	model := client.GenerativeModel(l.config.ChatModel)
	model.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(`You are a precise document text extractor. Extract ALL text content from this PDF exactly as it appears, maintaining original formatting, line breaks, and structure. Do not summarize, interpret, or modify the content.`)},
	}

	resp, err := model.GenerateContent(ctx,
		genai.FileData{URI: file.URI},
		genai.Text("Extract all text content from this PDF document. Maintain original formatting and structure."),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini text extraction failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no text extracted by gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}

	return []models.Segment{{Text: sb.String(), Page: 1}}, nil
}

// ensureGeminiClient initializes the shared client exactly once, so
// concurrent uploads never race on the field or leak a second client.
func (l *Loader) ensureGeminiClient(ctx context.Context) (*genai.Client, error) {
	if l.config.GoogleAPIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	l.geminiOnce.Do(func() {
		l.geminiClient, l.geminiErr = genai.NewClient(ctx, option.WithAPIKey(l.config.GoogleAPIKey))
	})
	if l.geminiErr != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", l.geminiErr)
	}
	return l.geminiClient, nil
}

// loadText reads a plain text file as a single segment.
func (l *Loader) loadText(filePath string) ([]models.Segment, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return []models.Segment{{Text: string(content)}}, nil
}

// loadWord extracts paragraph text from word/document.xml inside the docx
// archive. No docx parsing library is used; the format is just zipped XML.
func (l *Loader) loadWord(filePath string) ([]models.Segment, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open docx archive: %v", ErrUnreadableDocument, err)
	}
	defer archive.Close()

	var docFile *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: word/document.xml not found", ErrUnreadableDocument)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	text, err := extractWordText(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return []models.Segment{{Text: text}}, nil
}

// extractWordText walks the WordprocessingML token stream collecting run
// text, with newlines at paragraph and break boundaries.
func extractWordText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				sb.WriteString("\n")
			case "tab":
				sb.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func dropEmptySegments(segments []models.Segment) []models.Segment {
	result := make([]models.Segment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			result = append(result, seg)
		}
	}
	return result
}
