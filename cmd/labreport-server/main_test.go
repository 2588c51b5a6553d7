package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/labreport/labreport/internal/config"
	"github.com/labreport/labreport/internal/domain/examhistory"
	"github.com/labreport/labreport/internal/domain/labreport"
	"github.com/labreport/labreport/internal/platform/export"
	"github.com/labreport/labreport/internal/platform/middleware"
	"github.com/labreport/labreport/internal/platform/textsource"
)

const sampleReport = "Resultados de Exames para PEP\n" +
	"Dados do Paciente:\n" +
	"● Nome: Ana Lima\n" +
	"● Data da Coleta: 10/03/2025\n" +
	"Resultados:\n" +
	"● Hemograma:\n" +
	"○ Hemoglobina: 11,4 g/dL (Referência: 13,0 a 17,0 g/dL)\n" +
	"● Creatinina: 1,20 mg/dL (Referência: Adultos: 0,5-1,00 mg/dL)\n"

func testConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		CORSOrigins:      []string{"*"},
		MaxDocumentBytes: 1 << 20,
		RateLimitRPS:     100,
		RateLimitBurst:   100,
	}
}

func testRouter() http.Handler {
	cfg := testConfig()
	return newRouter(routerDeps{
		cfg:       cfg,
		logger:    zerolog.Nop(),
		svc:       examhistory.NewService(nil, cfg.EGFRProfile()),
		extractor: textsource.New(cfg.MaxDocumentBytes),
	})
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "tenant": false, "parse": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
}

func TestParseOptions_Profile(t *testing.T) {
	base := labreport.DefaultProfile()

	p, err := parseOptions{age: 50, sex: "F", black: true}.profile(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Age != 50 || !p.Female || !p.Black {
		t.Errorf("unexpected profile %+v", p)
	}

	p, err = parseOptions{}.profile(base)
	if err != nil || p != base {
		t.Errorf("expected base profile, got %+v (%v)", p, err)
	}

	if _, err := (parseOptions{sex: "x"}).profile(base); err == nil {
		t.Error("expected error for unknown sex")
	}
	if _, err := (parseOptions{age: 10}).profile(base); err == nil {
		t.Error("expected error for age below range")
	}
}

func TestRunParse_Formats(t *testing.T) {
	x := textsource.New(1 << 20)
	base := labreport.DefaultProfile()

	var buf bytes.Buffer
	if err := runParse(&buf, x, "laudo.txt", []byte(sampleReport), base, parseOptions{format: "json"}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var res labreport.ParseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Meta.SubjectName != "Ana Lima" {
		t.Errorf("expected subject Ana Lima, got %q", res.Meta.SubjectName)
	}

	buf.Reset()
	if err := runParse(&buf, x, "laudo.txt", []byte(sampleReport), base, parseOptions{format: "txt"}); err != nil {
		t.Fatalf("txt: %v", err)
	}
	if !strings.Contains(buf.String(), export.TextTitle) {
		t.Errorf("expected text title, got %q", buf.String())
	}

	buf.Reset()
	if err := runParse(&buf, x, "laudo.txt", []byte(sampleReport), base, parseOptions{format: "docx"}); err != nil {
		t.Fatalf("docx: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("expected a zip container for docx")
	}

	if err := runParse(&buf, x, "laudo.txt", []byte(sampleReport), base, parseOptions{format: "pdf"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRunParse_EmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	err := runParse(&buf, textsource.New(1<<20), "vazio.txt", []byte("   \n"), labreport.DefaultProfile(), parseOptions{format: "json"})
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"`+version+`"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestRouter_Parse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lab-reports/parse", strings.NewReader(sampleReport))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"subject_name":"Ana Lima"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on API responses")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
