package fileagent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabdhq/nabd/internal/objectstore"
	"github.com/nabdhq/nabd/internal/store"
)

type fakeAnalyzer struct {
	got   string
	out   string
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, content string) (string, error) {
	f.got = content
	f.calls++
	return f.out, nil
}

func newTestAgent(t *testing.T, analyzer *fakeAnalyzer) (*Agent, *store.Store, *objectstore.Disk) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureUser("u1"))

	disk, err := objectstore.NewDisk(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	var a *Agent
	if analyzer != nil {
		a = New(st, disk, analyzer, zerolog.Nop())
	} else {
		a = New(st, disk, nil, zerolog.Nop())
	}
	return a, st, disk
}

func seedFile(t *testing.T, st *store.Store, disk *objectstore.Disk, name, mimeType string, content []byte) *store.File {
	t.Helper()
	objectPath := ".private/1-" + name
	require.NoError(t, disk.Put(objectPath, content))

	f, err := st.CreateFile(&store.File{
		UserID:     "u1",
		Name:       name,
		Type:       mimeType,
		Size:       int64(len(content)),
		ObjectPath: objectPath,
	})
	require.NoError(t, err)
	return f
}

func TestExtractText_Plain(t *testing.T) {
	text, ok := ExtractText([]byte("مرحبا بالعالم"), "text/plain", "note.txt")
	require.True(t, ok)
	assert.Equal(t, "مرحبا بالعالم", text)
}

func TestExtractText_JSONPrettyPrinted(t *testing.T) {
	text, ok := ExtractText([]byte(`{"b":1,"a":"x"}`), "application/json", "data.json")
	require.True(t, ok)
	assert.Contains(t, text, "\n")
	assert.Contains(t, text, `"a": "x"`)
}

func TestExtractText_InvalidJSONKeptRaw(t *testing.T) {
	text, ok := ExtractText([]byte(`{oops`), "application/json", "data.json")
	require.True(t, ok)
	assert.Equal(t, `{oops`, text)
}

func TestExtractText_CSVByExtension(t *testing.T) {
	text, ok := ExtractText([]byte("a,b\n1,2\n"), "application/octet-stream", "data.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b\n1,2\n", text)
}

func TestExtractText_PDFParenTokens(t *testing.T) {
	content := []byte(`%PDF-1.4
BT (This is the first sentence of the report) Tj (and here is quite a bit more text) Tj ET`)
	text, ok := ExtractText(content, "application/pdf", "r.pdf")
	require.True(t, ok)
	assert.Contains(t, text, "first sentence of the report")
	assert.Contains(t, text, "quite a bit more text")
}

func TestExtractText_PDFStreamFallback(t *testing.T) {
	content := []byte("%PDF-1.4\nstream\nhello \x01\x02 world\nendstream")
	text, ok := ExtractText(content, "application/pdf", "r.pdf")
	require.True(t, ok)
	assert.Equal(t, "hello world", text)
}

func TestExtractText_PDFNothingRecoverable(t *testing.T) {
	text, ok := ExtractText([]byte("%PDF-1.4 nothing here"), "application/pdf", "r.pdf")
	require.True(t, ok)
	assert.Equal(t, msgPDFNoText, text)
}

func TestExtractText_DOCX(t *testing.T) {
	content := []byte(`<w:p><w:t xml:space="preserve">التقرير السنوي</w:t><w:t>للشركة</w:t></w:p>`)
	text, ok := ExtractText(content, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "r.docx")
	require.True(t, ok)
	assert.Equal(t, "التقرير السنوي للشركة", text)
}

func TestExtractText_DOCXNoRuns(t *testing.T) {
	text, ok := ExtractText([]byte("binary junk"), "application/msword", "r.doc")
	require.True(t, ok)
	assert.Equal(t, msgDocxNoText, text)
}

func TestExtractText_Unsupported(t *testing.T) {
	_, ok := ExtractText([]byte{0xFF, 0xD8}, "image/jpeg", "photo.jpg")
	assert.False(t, ok)
}

func TestProcessFile(t *testing.T) {
	a, st, disk := newTestAgent(t, nil)
	f := seedFile(t, st, disk, "note.txt", "text/plain", []byte("محتوى الملاحظة"))

	a.ProcessFile(f.ID)

	got, err := st.GetFile(f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, "محتوى الملاحظة", got.ExtractedText)
}

func TestProcessFile_UnsupportedTypeLeavesUnprocessed(t *testing.T) {
	a, st, disk := newTestAgent(t, nil)
	f := seedFile(t, st, disk, "photo.jpg", "image/jpeg", []byte{0xFF, 0xD8})

	a.ProcessFile(f.ID)

	got, err := st.GetFile(f.ID)
	require.NoError(t, err)
	assert.False(t, got.IsProcessed)
	assert.Empty(t, got.ExtractedText)
}

func TestProcessFile_UnknownIDIsNoop(t *testing.T) {
	a, _, _ := newTestAgent(t, nil)
	a.ProcessFile("missing")
}

func TestProcessFile_ReportsOutcome(t *testing.T) {
	a, st, disk := newTestAgent(t, nil)
	var outcomes []string
	a.OnProcessed = func(result string) { outcomes = append(outcomes, result) }

	ok := seedFile(t, st, disk, "note.txt", "text/plain", []byte("نص"))
	bad := seedFile(t, st, disk, "photo.jpg", "image/jpeg", []byte{0xFF, 0xD8})

	a.ProcessFile(ok.ID)
	a.ProcessFile(bad.ID)

	assert.Equal(t, []string{"ok", "error"}, outcomes)
}

func TestAnalyzeFile_UsesCachedText(t *testing.T) {
	analyzer := &fakeAnalyzer{out: "تحليل جاهز"}
	a, st, disk := newTestAgent(t, analyzer)
	f := seedFile(t, st, disk, "note.txt", "text/plain", []byte("ignored"))

	cached := "النص المستخرج مسبقاً من المستند"
	processed := true
	_, err := st.UpdateFile(f.ID, store.FileUpdate{ExtractedText: &cached, IsProcessed: &processed})
	require.NoError(t, err)

	out, err := a.AnalyzeFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "تحليل جاهز", out)
	assert.Equal(t, cached, analyzer.got)
}

func TestAnalyzeFile_ExtractsAndCaches(t *testing.T) {
	analyzer := &fakeAnalyzer{out: "تحليل"}
	a, st, disk := newTestAgent(t, analyzer)
	f := seedFile(t, st, disk, "note.txt", "text/plain", []byte("محتوى المستند الكامل هنا"))

	out, err := a.AnalyzeFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "تحليل", out)

	got, err := st.GetFile(f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, "محتوى المستند الكامل هنا", got.ExtractedText)
}

func TestAnalyzeFile_RepeatUsesCache(t *testing.T) {
	analyzer := &fakeAnalyzer{out: "تحليل"}
	a, st, disk := newTestAgent(t, analyzer)
	f := seedFile(t, st, disk, "note.txt", "text/plain", []byte("محتوى المستند الكامل هنا"))

	cached := "النص المستخرج من المستند"
	processed := true
	_, err := st.UpdateFile(f.ID, store.FileUpdate{ExtractedText: &cached, IsProcessed: &processed})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := a.AnalyzeFile(context.Background(), f.ID)
		require.NoError(t, err)
		assert.Equal(t, "تحليل", out)
	}
	assert.Equal(t, 1, analyzer.calls)
}

func TestAnalyzeFile_TooShort(t *testing.T) {
	a, st, disk := newTestAgent(t, &fakeAnalyzer{out: "x"})
	f := seedFile(t, st, disk, "tiny.txt", "text/plain", []byte("قصير"))

	out, err := a.AnalyzeFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, msgNotEnoughText, out)
}

func TestAnalyzeFile_UnknownID(t *testing.T) {
	a, _, _ := newTestAgent(t, &fakeAnalyzer{})
	out, err := a.AnalyzeFile(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnalyzeFile_NoAnalyzerConfigured(t *testing.T) {
	a, _, _ := newTestAgent(t, nil)
	_, err := a.AnalyzeFile(context.Background(), "any")
	assert.Error(t, err)
}

func TestSearchFiles(t *testing.T) {
	a, st, disk := newTestAgent(t, nil)

	long := strings.Repeat("x", 80) + "IMPORTANT FINDING" + strings.Repeat("y", 80)
	for _, f := range []struct{ name, text string }{
		{"hit.txt", long},
		{"miss.txt", "nothing relevant"},
		{"empty.txt", ""},
	} {
		rec := seedFile(t, st, disk, f.name, "text/plain", []byte("raw"))
		if f.text != "" {
			processed := true
			text := f.text
			_, err := st.UpdateFile(rec.ID, store.FileUpdate{ExtractedText: &text, IsProcessed: &processed})
			require.NoError(t, err)
		}
	}

	results, err := a.SearchFiles("u1", "important finding")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit.txt", results[0].FileName)
	assert.Contains(t, results[0].MatchedText, "IMPORTANT FINDING")
	assert.True(t, strings.HasPrefix(results[0].MatchedText, "..."))
	// 50 chars of context on each side.
	assert.Contains(t, results[0].MatchedText, strings.Repeat("x", 50))
	assert.NotContains(t, results[0].MatchedText, strings.Repeat("x", 51))
}

func TestSearchFiles_NoMatches(t *testing.T) {
	a, _, _ := newTestAgent(t, nil)
	results, err := a.SearchFiles("u1", "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}
