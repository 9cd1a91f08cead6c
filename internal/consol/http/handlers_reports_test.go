package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/thinq-erp/consol/internal/consol"
	"github.com/thinq-erp/consol/internal/statement"
)

type stubReportService struct {
	bsCalls int
	report  consol.Report
	matrix  consol.MatrixReport
}

func (s *stubReportService) ComputeRawMatrix(ctx context.Context, filter consol.Filters) (consol.MatrixReport, error) {
	s.matrix.Filters = filter
	return s.matrix, nil
}

func (s *stubReportService) ComputeBalanceSheet(ctx context.Context, filter consol.Filters) (consol.Report, error) {
	s.bsCalls++
	report := s.report
	report.Filters = filter
	report.Statement = statement.StatementBalanceSheet
	return report, nil
}

func (s *stubReportService) ComputeProfitLoss(ctx context.Context, filter consol.Filters) (consol.Report, error) {
	report := s.report
	report.Filters = filter
	report.Statement = statement.StatementProfitLoss
	return report, nil
}

func (s *stubReportService) ComputeCashFlow(ctx context.Context, filter consol.Filters) (consol.Report, error) {
	report := s.report
	report.Filters = filter
	report.Statement = statement.StatementCashFlow
	return report, nil
}

func newTestReportHandler(t *testing.T, svc ReportService) (*ReportHandler, *chi.Mux) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	handler := NewReportHandler(slogDiscard(), svc, client, time.Minute)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return handler, router
}

func sampleReport() consol.Report {
	return consol.Report{
		Rows: []statement.Row{
			{EntityID: 1, EntityName: "Holding", AccountID: 10, AccountCode: "1000", AccountName: "Cash", Section: statement.SectionAssets, Amount: 1500},
		},
		SectionTotals: map[string]float64{statement.SectionAssets: 1500},
		Balanced:      true,
	}
}

func TestBalanceSheetEndpointReturnsJSON(t *testing.T) {
	svc := &stubReportService{report: sampleReport()}
	_, router := newTestReportHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/consol/reports/bs?root=1&from=2024-01-01&to=2024-01-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var report consol.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Statement != statement.StatementBalanceSheet {
		t.Fatalf("expected BS statement, got %q", report.Statement)
	}
	if !report.Filters.DateTo.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_to %s", report.Filters.DateTo)
	}
}

func TestBalanceSheetEndpointServesSecondCallFromCache(t *testing.T) {
	svc := &stubReportService{report: sampleReport()}
	_, router := newTestReportHandler(t, svc)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/consol/reports/bs?root=1&from=2024-01-01&to=2024-01-31", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("call %d: expected status 200, got %d", i, rr.Code)
		}
		if i == 1 && rr.Header().Get("X-Cache") != "HIT" {
			t.Fatalf("expected cache hit on second call")
		}
	}
	if svc.bsCalls != 1 {
		t.Fatalf("expected one service call, got %d", svc.bsCalls)
	}
}

func TestReportEndpointRejectsBadFilters(t *testing.T) {
	svc := &stubReportService{report: sampleReport()}
	_, router := newTestReportHandler(t, svc)

	cases := []string{
		"/consol/reports/bs",
		"/consol/reports/bs?root=0&from=2024-01-01&to=2024-01-31",
		"/consol/reports/bs?root=1&from=2024-02-01&to=2024-01-01",
		"/consol/reports/bs?root=1&from=2024-01-01&to=2024-01-31&elim=maybe",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, rr.Code)
		}
	}
}

func TestExportCSVStreamsReport(t *testing.T) {
	svc := &stubReportService{report: sampleReport()}
	_, router := newTestReportHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/consol/reports/bs/export.csv?root=1&from=2024-01-01&to=2024-01-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "# Report: Consolidated Balance Sheet") {
		t.Fatalf("expected metadata comment, got %q", body)
	}
	if !strings.Contains(body, "1000,Cash,1500.00") {
		t.Fatalf("expected account row in csv, got %q", body)
	}
	if !strings.Contains(body, "Totals,,ASSETS,,1500.00") {
		t.Fatalf("expected totals row in csv, got %q", body)
	}
}

func TestMatrixEndpointPassesEliminationFlag(t *testing.T) {
	svc := &stubReportService{matrix: consol.MatrixReport{Cells: []statement.MatrixCell{{EntityID: 1, AccountID: 10, Amount: 42}}}}
	_, router := newTestReportHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/consol/reports/matrix?root=1&from=2024-01-01&to=2024-01-31&elim=on", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var matrix consol.MatrixReport
	if err := json.Unmarshal(rr.Body.Bytes(), &matrix); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !matrix.Filters.IncludeElimination {
		t.Fatalf("expected elimination flag to pass through")
	}
	if len(matrix.Cells) != 1 || matrix.Cells[0].Amount != 42 {
		t.Fatalf("unexpected matrix cells %+v", matrix.Cells)
	}
}
