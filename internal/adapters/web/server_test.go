package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvemart/internal/adapters/reporting"
	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/services/analytics"
)

type stubReader struct {
	cves         []domain.DimCve
	vendors      []domain.Vendor
	products     []domain.Product
	bridge       []domain.BridgeCveProduct
	observations []domain.ScoreObservation
}

func (s *stubReader) Cves(context.Context) ([]domain.DimCve, error)            { return s.cves, nil }
func (s *stubReader) Vendors(context.Context) ([]domain.Vendor, error)         { return s.vendors, nil }
func (s *stubReader) Products(context.Context) ([]domain.Product, error)       { return s.products, nil }
func (s *stubReader) Bridge(context.Context) ([]domain.BridgeCveProduct, error) {
	return s.bridge, nil
}
func (s *stubReader) Observations(context.Context) ([]domain.ScoreObservation, error) {
	return s.observations, nil
}

func fp(v float64) *float64 { return &v }

func testServer() (*Server, *stubReader) {
	reader := &stubReader{
		cves: []domain.DimCve{{
			CveID:         "CVE-2024-0001",
			Title:         "Remote code execution",
			RemotelyExploit: true,
			PublishedDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}},
		vendors:  []domain.Vendor{{VendorID: 1, VendorName: "Acme"}},
		products: []domain.Product{{ProductID: 1, VendorID: 1, ProductName: "Server"}},
		bridge:   []domain.BridgeCveProduct{{CveID: "CVE-2024-0001", ProductID: 1}},
		observations: []domain.ScoreObservation{{
			CveID:    "CVE-2024-0001",
			Version:  "CVSS 3.1",
			SourceID: 1,
			Score:    fp(9.8),
			Severity: "CRITICAL",
		}},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analytics.NewService(reader, nil, log)
	return NewServer(":0", svc, reader, reporting.NewPDFExporter()), reader
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	SetupRoutes(s).ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunReportEndpoint(t *testing.T) {
	s, _ := testServer()

	rec := doRequest(t, s, "/api/run")
	assert.Equal(t, http.StatusNotFound, rec.Code, "404 before the first run")

	s.SetRunReport(domain.RunReport{RunID: "run-1", RecordsIn: 5})
	rec = doRequest(t, s, "/api/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 5, report.RecordsIn)
}

func TestExecutiveReportEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s, "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.ExecutiveReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalCves)
	assert.Equal(t, 1, report.CriticalCves)
	require.Len(t, report.TopRisks, 1)
	assert.Equal(t, "CVE-2024-0001", report.TopRisks[0].CveID)
}

func TestExecutivePDFEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s, "/api/report/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestCveLookupEndpoint(t *testing.T) {
	s, _ := testServer()

	rec := doRequest(t, s, "/api/cves/CVE-2024-0001")
	require.Equal(t, http.StatusOK, rec.Code)

	var cve domain.DimCve
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cve))
	assert.Equal(t, "Remote code execution", cve.Title)

	rec = doRequest(t, s, "/api/cves/CVE-1999-9999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
