package models

import "time"

// Document represents one ingested source file. All chunks produced from the
// same upload share its generated ID.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SourcePath string    `json:"source_path"`
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkCount int       `json:"chunk_count"`
}

// Chunk is a bounded substring of a document's extracted text, the unit of
// embedding and retrieval.
type Chunk struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Index      int    `json:"index"`
	Page       int    `json:"page"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}

// Segment is a raw (text, page) record produced by a document loader before
// chunking. Page is zero-based where the source has no page structure.
type Segment struct {
	Text string
	Page int
}

// SearchResult is a chunk with its similarity score against a query vector.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// FileInfo describes an uploaded file for the /files listing.
type FileInfo struct {
	Name string `json:"name"`
	Size string `json:"size"`
	Path string `json:"path"`
}

// UploadResponse is returned after a successful ingestion.
type UploadResponse struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// AskRequest is the /ask request body.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the /ask success body.
type AskResponse struct {
	Answer string `json:"answer"`
}
