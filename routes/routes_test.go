package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/vectorstore"
	"document-qa-backend/services"

	"github.com/gin-gonic/gin"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		GoogleAPIKey:      "test-key",
		UploadDir:         t.TempDir(),
		MaxFileSize:       52428800,
		AllowedExtensions: []string{".pdf", ".txt", ".docx", ".doc"},
		ChunkSize:         1000,
		ChunkOverlap:      200,
		TopK:              5,
		FetchK:            20,
		MMRLambda:         0.5,
	}
}

// testRouter wires the handlers against an empty vector store. The AI clients
// are nil, which is safe for every path these tests hit since they all reject
// before reaching the provider.
func testRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := vectorstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := gin.New()
	SetupDocumentRoutes(router, cfg, services.NewIngestor(cfg, nil, store))
	SetupAskRoutes(router, cfg, services.NewAnswerer(services.NewRetriever(cfg, nil, store), nil))
	return router
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestTestEndpoint(t *testing.T) {
	router := testRouter(t, testConfig(t))

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "API is working!" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestListFilesEmptyUploadDir(t *testing.T) {
	router := testRouter(t, testConfig(t))

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/files", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	files, ok := body["files"].([]interface{})
	if !ok {
		t.Fatalf("expected a files array, got %v", body)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestUploadWithoutFile(t *testing.T) {
	router := testRouter(t, testConfig(t))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := doRequest(router, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "No file provided" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	router := testRouter(t, testConfig(t))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "malware.exe")
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	fw.Write([]byte("MZ"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := doRequest(router, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	body := decodeBody(t, w)
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "Unsupported file type .exe") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestUploadWithoutAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleAPIKey = ""
	router := testRouter(t, cfg)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if w := doRequest(router, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAskWithoutQuestion(t *testing.T) {
	router := testRouter(t, testConfig(t))

	for _, payload := range []string{`{}`, `{"question": "   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		w := doRequest(router, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", payload, w.Code)
			continue
		}
		if body := decodeBody(t, w); body["message"] != "No question provided" {
			t.Errorf("payload %q: unexpected body: %v", payload, body)
		}
	}
}

func TestAskWithEmptyStore(t *testing.T) {
	router := testRouter(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "What is this about?"}`))
	req.Header.Set("Content-Type", "application/json")

	w := doRequest(router, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "No document data available. Please upload a file first." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAskWithoutAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleAPIKey = ""
	router := testRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "anything"}`))
	req.Header.Set("Content-Type", "application/json")

	if w := doRequest(router, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestServeMissingFile(t *testing.T) {
	router := testRouter(t, testConfig(t))

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/uploads/nope.pdf", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
