// Package fileagent extracts searchable text from uploaded files and runs
// model-backed document analysis.
package fileagent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nabdhq/nabd/internal/lru"
	"github.com/nabdhq/nabd/internal/nlu"
	"github.com/nabdhq/nabd/internal/objectstore"
	"github.com/nabdhq/nabd/internal/store"
)

const analysisCacheSize = 128

// Extraction fallback messages.
const (
	msgPDFNoText      = "لم يتم استخراج نص من الملف. قد يكون الملف مشفراً أو يحتوي على صور فقط."
	msgDocxNoText     = "لم يتم استخراج نص من ملف Word."
	msgNotEnoughText  = "لم يتم العثور على محتوى كافٍ للتحليل في هذا الملف."
	minAnalyzableText = 10
)

// SearchResult is one match from SearchFiles.
type SearchResult struct {
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	MatchedText string `json:"matchedText"`
}

// Agent wires file records, object storage and the document analyzer.
type Agent struct {
	store    *store.Store
	objects  objectstore.Storage
	analyzer nlu.DocumentAnalyzer
	logger   zerolog.Logger

	// analyses caches model output keyed by file id and revision, so
	// repeated analyze calls on an unchanged file skip the model.
	analyses *lru.Cache[string, string]

	// OnProcessed is called after every ProcessFile run with "ok" or
	// "error", if set.
	OnProcessed func(result string)
}

// New constructs a file agent. analyzer may be nil when no model is
// configured; AnalyzeFile then reports an error.
func New(st *store.Store, objects objectstore.Storage, analyzer nlu.DocumentAnalyzer, logger zerolog.Logger) *Agent {
	return &Agent{
		store:    st,
		objects:  objects,
		analyzer: analyzer,
		logger:   logger.With().Str("component", "fileagent").Logger(),
		analyses: lru.New[string, string](analysisCacheSize),
	}
}

var (
	pdfParenToken   = regexp.MustCompile(`\(([^)]+)\)`)
	pdfControlOnly  = regexp.MustCompile(`^[\x00-\x1F]+$`)
	pdfStreamBlock  = regexp.MustCompile(`(?s)stream\s*(.*?)\s*endstream`)
	pdfNonPrintable = regexp.MustCompile(`[^\x20-\x7E\x{0600}-\x{06FF}\s]`)
	docxTextRun     = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// ExtractText pulls plain text out of file content by MIME type. The PDF and
// DOCX paths are lossy heuristics, not real parsers: they recover enough text
// for search and analysis without a rendering dependency. Returns ok=false for
// unsupported types.
func ExtractText(content []byte, mimeType, name string) (string, bool) {
	switch {
	case strings.Contains(mimeType, "application/json"):
		return extractJSON(content), true

	case strings.Contains(mimeType, "text/csv") || strings.HasSuffix(name, ".csv"):
		return string(content), true

	case strings.Contains(mimeType, "text/"):
		return string(content), true

	case strings.Contains(mimeType, "application/pdf"):
		return extractPDF(content), true

	case strings.Contains(mimeType, "application/vnd.openxmlformats-officedocument.wordprocessingml"),
		strings.Contains(mimeType, "application/msword"):
		return extractDOCX(content), true
	}
	return "", false
}

// extractJSON pretty-prints valid JSON, otherwise returns the raw text.
func extractJSON(content []byte) string {
	var v interface{}
	if err := json.Unmarshal(content, &v); err != nil {
		return string(content)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(content)
	}
	return string(pretty)
}

// extractPDF first collects parenthesized literals (uncompressed text
// operators), then falls back to scrubbing stream sections down to printable
// Latin and Arabic runs.
func extractPDF(content []byte) string {
	var tokens []string
	for _, m := range pdfParenToken.FindAllSubmatch(content, -1) {
		text := string(m[1])
		if len(text) > 1 && !pdfControlOnly.MatchString(text) {
			tokens = append(tokens, text)
		}
	}
	if joined := strings.Join(tokens, " "); len(joined) > 50 {
		return joined
	}

	streams := pdfStreamBlock.FindAllSubmatch(content, -1)
	if len(streams) > 0 {
		var parts []string
		for _, m := range streams {
			parts = append(parts, string(pdfNonPrintable.ReplaceAll(m[1], []byte(" "))))
		}
		return strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.Join(parts, " "), " "))
	}

	return msgPDFNoText
}

// extractDOCX scavenges <w:t> runs from whatever XML survives in the raw
// bytes.
func extractDOCX(content []byte) string {
	var runs []string
	for _, m := range docxTextRun.FindAllSubmatch(content, -1) {
		runs = append(runs, string(m[1]))
	}
	if joined := strings.Join(runs, " "); len(joined) > 10 {
		return joined
	}
	return msgDocxNoText
}

// ProcessFile extracts text for a stored file and marks it processed. Meant
// to run in a goroutine after upload; all failures are logged and swallowed,
// leaving the record unprocessed.
func (a *Agent) ProcessFile(fileID string) {
	f, err := a.store.GetFile(fileID)
	if err != nil || f == nil {
		a.logger.Error().Err(err).Str("file_id", fileID).Msg("file lookup failed")
		a.recordProcessed("error")
		return
	}

	text, err := a.extract(f)
	if err != nil {
		a.logger.Warn().Err(err).Str("file_id", fileID).Str("name", f.Name).Msg("text extraction skipped")
		a.recordProcessed("error")
		return
	}

	processed := true
	if _, err := a.store.UpdateFile(fileID, store.FileUpdate{
		ExtractedText: &text,
		IsProcessed:   &processed,
	}); err != nil {
		a.logger.Error().Err(err).Str("file_id", fileID).Msg("failed to persist extracted text")
		a.recordProcessed("error")
		return
	}
	a.recordProcessed("ok")

	a.logger.Info().Str("file_id", fileID).Str("name", f.Name).
		Int("chars", len(text)).Msg("file processed")
}

func (a *Agent) recordProcessed(result string) {
	if a.OnProcessed != nil {
		a.OnProcessed(result)
	}
}

func (a *Agent) extract(f *store.File) (string, error) {
	content, err := a.objects.GetBytes(f.ObjectPath)
	if err != nil {
		return "", fmt.Errorf("failed to load object: %w", err)
	}
	text, ok := ExtractText(content, f.Type, f.Name)
	if !ok {
		return "", fmt.Errorf("unsupported file type %q", f.Type)
	}
	return text, nil
}

// AnalyzeFile returns a model analysis of the file's text, extracting and
// caching it first when needed. Returns ("", nil) for an unknown file id.
func (a *Agent) AnalyzeFile(ctx context.Context, fileID string) (string, error) {
	if a.analyzer == nil {
		return "", fmt.Errorf("document analysis is not configured")
	}

	f, err := a.store.GetFile(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to load file: %w", err)
	}
	if f == nil {
		return "", nil
	}

	text := f.ExtractedText
	if text == "" {
		extracted, err := a.extract(f)
		if err == nil {
			text = extracted
			processed := true
			updated, err := a.store.UpdateFile(fileID, store.FileUpdate{
				ExtractedText: &text,
				IsProcessed:   &processed,
			})
			if err != nil {
				a.logger.Warn().Err(err).Str("file_id", fileID).Msg("failed to cache extracted text")
			} else if updated != nil {
				f = updated
			}
		}
	}

	if len(text) < minAnalyzableText {
		return msgNotEnoughText, nil
	}

	cacheKey := fmt.Sprintf("%s@%d", f.ID, f.UpdatedAt)
	if cached, ok := a.analyses.Get(cacheKey); ok {
		return cached, nil
	}

	analysis, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		return "", err
	}
	a.analyses.Put(cacheKey, analysis)
	return analysis, nil
}

// SearchFiles scans the caller's extracted texts for a case-insensitive
// substring, returning each first match with surrounding context.
func (a *Agent) SearchFiles(userID, query string) ([]SearchResult, error) {
	files, err := a.store.ListFiles(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	needle := strings.ToLower(query)
	results := []SearchResult{}
	for _, f := range files {
		if f.ExtractedText == "" {
			continue
		}
		idx := strings.Index(strings.ToLower(f.ExtractedText), needle)
		if idx < 0 {
			continue
		}
		results = append(results, SearchResult{
			FileID:      f.ID,
			FileName:    f.Name,
			MatchedText: "..." + snippet(f.ExtractedText, idx, len(query)) + "...",
		})
	}
	return results, nil
}

// snippet returns up to 50 bytes of context on each side of the match,
// nudged to rune boundaries so multibyte text is never split.
func snippet(text string, idx, matchLen int) string {
	start := idx - 50
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + 50
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
