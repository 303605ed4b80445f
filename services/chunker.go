package services

import (
	"strings"

	"document-qa-backend/models"

	"github.com/google/uuid"
)

// Chunker splits text into fixed-size overlapping chunks, preferring to
// break at paragraph, then line, then word boundaries before falling back to
// character positions.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// ChunkDocument splits each segment and assembles chunks carrying the shared
// document ID, a sequence index across the whole document, and the source
// page. Empty chunks are dropped before they reach embedding.
func (c *Chunker) ChunkDocument(filename string, segments []models.Segment) (string, []models.Chunk) {
	docID := uuid.NewString()

	var chunks []models.Chunk
	for _, segment := range segments {
		for _, text := range c.Split(segment.Text) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				DocumentID: docID,
				ChunkID:    uuid.NewString(),
				Index:      len(chunks),
				Page:       segment.Page,
				Filename:   filename,
				Text:       text,
			})
		}
	}
	return docID, chunks
}

// Split is deterministic: the same text with the same parameters always
// yields the same ordered chunk sequence.
func (c *Chunker) Split(text string) []string {
	return c.splitRecursive(text, c.separators)
}

func (c *Chunker) splitRecursive(text string, separators []string) []string {
	var finalChunks []string

	// Pick the first separator that occurs in the text.
	separator := separators[len(separators)-1]
	var newSeparators []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			separator = s
			newSeparators = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	// Pieces small enough are merged; oversized pieces recurse with the
	// finer-grained separators.
	var goodSplits []string
	for _, s := range splits {
		if len(s) < c.chunkSize {
			goodSplits = append(goodSplits, s)
			continue
		}
		if len(goodSplits) > 0 {
			finalChunks = append(finalChunks, c.mergeSplits(goodSplits, separator)...)
			goodSplits = nil
		}
		if len(newSeparators) == 0 {
			finalChunks = append(finalChunks, s)
		} else {
			finalChunks = append(finalChunks, c.splitRecursive(s, newSeparators)...)
		}
	}
	if len(goodSplits) > 0 {
		finalChunks = append(finalChunks, c.mergeSplits(goodSplits, separator)...)
	}

	return finalChunks
}

// mergeSplits greedily packs pieces into chunks up to chunkSize, retaining a
// tail of pieces whose combined length covers chunkOverlap so adjacent
// chunks share context across the boundary.
func (c *Chunker) mergeSplits(splits []string, separator string) []string {
	sepLen := len(separator)

	var docs []string
	var current []string
	total := 0

	for _, split := range splits {
		splitLen := len(split)
		joinLen := 0
		if len(current) > 0 {
			joinLen = sepLen
		}

		if total+splitLen+joinLen > c.chunkSize && total > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			// Shed leading pieces until the retained tail fits the overlap
			// and leaves room for the next piece.
			for total > c.chunkOverlap || (total+splitLen+joinLen > c.chunkSize && total > 0) {
				drop := len(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, split)
		total += splitLen
	}

	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitOn splits by separator, dropping empty pieces. The empty separator
// means character-level splitting.
func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		raw = strings.Split(text, "")
	} else {
		raw = strings.Split(text, separator)
	}

	result := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
