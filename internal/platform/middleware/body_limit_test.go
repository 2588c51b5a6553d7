package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func readAllHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		_, err := io.ReadAll(c.Request().Body)
		return err
	}
}

func runBodyLimit(t *testing.T, method, path string, body []byte, contentLength int64) (bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.ContentLength = contentLength
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	err := BodyLimit(512, 2048)(readAllHandler(&called))(c)
	return called, err
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	called, err := runBodyLimit(t, http.MethodPost, "/api/v1/lab-reports/parse", []byte("● Nome: Ana"), 13)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestBodyLimit_UploadRoutesGetDocumentLimit(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 1500)
	for _, path := range []string{"/api/v1/lab-reports", "/api/v1/lab-reports/", "/api/v1/lab-reports/parse"} {
		if _, err := runBodyLimit(t, http.MethodPost, path, body, int64(len(body))); err != nil {
			t.Errorf("%s: upload under the document limit rejected: %v", path, err)
		}
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 1024)
	called, err := runBodyLimit(t, http.MethodPost, "/api/v1/other", body, int64(len(body)))
	expectCode(t, err, http.StatusRequestEntityTooLarge)
	if called {
		t.Error("handler should not run when Content-Length exceeds the limit")
	}

	huge := bytes.Repeat([]byte("a"), 2048+multipartOverhead+1)
	_, err = runBodyLimit(t, http.MethodPost, "/api/v1/lab-reports", huge, int64(len(huge)))
	expectCode(t, err, http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 1024)
	_, err := runBodyLimit(t, http.MethodPost, "/api/v1/other", body, -1)
	expectCode(t, err, http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lab-reports", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	err := BodyLimit(1, 1)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Errorf("expected pass-through, got called=%v err=%v", called, err)
	}
}

func TestIsUploadPath(t *testing.T) {
	tests := map[string]bool{
		"/api/v1/lab-reports":          true,
		"/api/v1/lab-reports/parse":    true,
		"/api/v1/lab-reports/trends":   false,
		"/api/v1/lab-reports-archive":  false,
		"/api/v1/lab-reports/x/export": false,
	}
	for path, want := range tests {
		if got := isUploadPath(path); got != want {
			t.Errorf("isUploadPath(%s) = %v, want %v", path, got, want)
		}
	}
}

func expectCode(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}
