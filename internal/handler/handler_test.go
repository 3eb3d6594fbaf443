package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/airtime-desk/internal/middleware"
	"github.com/mmeshcher/airtime-desk/internal/model"
	"github.com/mmeshcher/airtime-desk/internal/repository"
)

type stubService struct {
	statsResp *model.Stats
	statsErr  error

	transactionResp *model.Transaction
	transactionErr  error

	exportCSV string
	exportErr error
}

func (s *stubService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.statsResp, s.statsErr
}

func (s *stubService) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.transactionResp, s.transactionErr
}

func (s *stubService) ExportTransactionsCSV(ctx context.Context, w io.Writer) error {
	if s.exportErr != nil {
		return s.exportErr
	}
	_, err := io.WriteString(w, s.exportCSV)
	return err
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func newTestServer(svc Service, pinger Pinger) *httptest.Server {
	h := NewHandler(svc, pinger, zap.NewNop(), middleware.NewAdminAuth("test-token"))
	return httptest.NewServer(h.SetupRouter())
}

func doRequest(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestPing(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "ok", pingErr: nil, wantStatus: http.StatusOK},
		{name: "db down", pingErr: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubService{}, &stubPinger{err: tt.pingErr})
			defer srv.Close()

			resp := doRequest(t, srv, "/ping", "")
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestStats(t *testing.T) {
	stats := &model.Stats{
		TodayTransactions: 3,
		TodayAmount:       105000,
		TotalUsers:        12,
		PendingTickets:    1,
	}

	srv := newTestServer(&stubService{statsResp: stats}, &stubPinger{})
	defer srv.Close()

	resp := doRequest(t, srv, "/api/admin/stats", "test-token")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}

	var got model.Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got != *stats {
		t.Fatalf("stats = %+v, want %+v", got, *stats)
	}
}

func TestStats_RequiresToken(t *testing.T) {
	srv := newTestServer(&stubService{statsResp: &model.Stats{}}, &stubPinger{})
	defer srv.Close()

	tests := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "wrong token", token: "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, srv, "/api/admin/stats", tt.token)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name       string
		svc        *stubService
		wantStatus int
	}{
		{
			name: "found",
			svc: &stubService{transactionResp: &model.Transaction{
				ID: "TX123", UserID: 100, Amount: 35000, Status: model.StatusPending,
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			svc:        &stubService{transactionErr: repository.ErrNotFound},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "storage failure",
			svc:        &stubService{transactionErr: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.svc, &stubPinger{})
			defer srv.Close()

			resp := doRequest(t, srv, "/api/admin/transactions/TX123", "test-token")
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestExportTransactions(t *testing.T) {
	csvBody := "created_at,transaction_id,user_id,amount,status,phone_number,package_name\n"

	srv := newTestServer(&stubService{exportCSV: csvBody}, &stubPinger{})
	defer srv.Close()

	resp := doRequest(t, srv, "/api/admin/transactions/export", "test-token")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q, want text/csv", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.HasPrefix(string(body), "created_at,transaction_id") {
		t.Fatalf("unexpected body:\n%s", body)
	}
}
