package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = http.Header{}
	}
	return b.header
}

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRenderCallback(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	renderCallback(rec, http.StatusOK, callbackView{
		Title:   "Authentication successful",
		Message: "<b>done</b>",
		Success: true,
		UserID:  "user_1234abcd",
	}, slog.New(slog.DiscardHandler))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); strings.Contains(body, "<b>done</b>") || !strings.Contains(body, "user_1234abcd") {
		t.Errorf("body not escaped or missing user id:\n%s", body)
	}
}

func TestRenderCallbackLogsWriteFailure(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	w := &brokenWriter{}

	renderCallback(w, http.StatusBadRequest, callbackView{Title: "Authentication failed", UserID: "user_1234abcd"}, logger)

	if w.status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.status)
	}
	if !strings.Contains(logs.String(), "Failed to write callback page") || !strings.Contains(logs.String(), "connection reset") {
		t.Errorf("write failure not logged:\n%s", logs.String())
	}
}
