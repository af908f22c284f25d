package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osbuddy/osbuddy/internal/log"
)

func TestRecoveryMiddlewareConvertsPanicTo500(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("panic response is not JSON: %v", err)
	}
	if body.Error.Code != "internal_error" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestRecoveryMiddlewareLeavesSentResponseAlone(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("after headers")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, headers already sent must stand", rec.Code)
	}
}

func TestRequestIDMiddlewareSetsHeaderAndContext(t *testing.T) {
	var fromCtx string
	handler := requestIDMiddleware()(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			fromCtx, _ = requestIDFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	header := rec.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if fromCtx != header {
		t.Errorf("context id %q != header id %q", fromCtx, header)
	}
}

func TestLoggingWriterDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	if _, err := lw.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	if lw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 on implicit write", lw.statusCode)
	}
	if lw.bytesWritten != 2 {
		t.Errorf("bytesWritten = %d", lw.bytesWritten)
	}
}
