package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.RecordRequest("/api/projects", "200")
	m.RecordRequest("/api/projects", "200")
	m.RecordDispatch("create_task", "ok")
	m.RecordRejection("chat")
	m.ObserveRequest("/api/projects", 0.05)
	m.ObserveDispatch(1.2)
	m.RecordFileProcessed("ok")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `nabd_http_requests_total{route="/api/projects",status="200"} 2`), body)
	assert.Contains(t, body, `nabd_chat_dispatches_total{intent="create_task",outcome="ok"} 1`)
	assert.Contains(t, body, `nabd_ratelimit_rejections_total{limiter="chat"} 1`)
	assert.Contains(t, body, `nabd_files_processed_total{result="ok"} 1`)
}
