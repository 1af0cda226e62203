package objectstore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestIssueUpload(t *testing.T) {
	d := newTestDisk(t)
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ticket, err := d.IssueUpload("sales report Q3!.pdf")
	require.NoError(t, err)
	assert.Equal(t, ".private/1700000000000-sales_report_Q3_.pdf", ticket.ObjectPath)
	assert.Equal(t, "/api/objects/"+ticket.ObjectPath, ticket.UploadURL)
}

func TestIssueUpload_EmptyName(t *testing.T) {
	d := newTestDisk(t)
	_, err := d.IssueUpload("")
	assert.Error(t, err)
}

func TestPutGetDelete(t *testing.T) {
	d := newTestDisk(t)

	require.NoError(t, d.Put(".private/1-report.txt", []byte("hello")))

	data, err := d.GetBytes(".private/1-report.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	text, err := d.GetText(".private/1-report.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, d.Delete(".private/1-report.txt"))
	_, err = d.GetBytes(".private/1-report.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_MissingIsNoop(t *testing.T) {
	d := newTestDisk(t)
	assert.NoError(t, d.Delete(".private/none.txt"))
}

func TestPathEscapeRejected(t *testing.T) {
	d := newTestDisk(t)

	assert.Error(t, d.Put("../outside.txt", []byte("x")))
	_, err := d.GetBytes("../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, d.Put("/abs/path", []byte("x")))
}

func TestList(t *testing.T) {
	d := newTestDisk(t)

	require.NoError(t, d.Put(".private/1-a.txt", []byte("a")))
	require.NoError(t, d.Put(".private/2-b.txt", []byte("b")))
	require.NoError(t, d.Put("public/3-c.txt", []byte("c")))

	all, err := d.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	private, err := d.List(".private/")
	require.NoError(t, err)
	assert.Equal(t, []string{".private/1-a.txt", ".private/2-b.txt"}, private)
}
