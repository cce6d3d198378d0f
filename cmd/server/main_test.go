package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		summaryStore: memory.NewDaySummaryStore(),
		tradeStore:   memory.NewTradeRecordStore(),
		logger:       log.New(os.Stderr, "[server-test] ", log.LstdFlags),
		started:      time.Now(),
	}

	ctx := context.Background()
	if err := s.summaryStore.Insert(ctx, &domain.DaySummary{
		TradeDate: "20260102", StartingEquity: 10000000, RealizedNetPnL: 47000, TradesClosed: 3,
	}); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	if err := s.tradeStore.Insert(ctx, &domain.TradeRecord{
		TradeID: "t-1", TradeDate: "20260102", Code: "005930",
		Quantity: 10, EntryPrice: 70000, ExitPrice: 71000, ExitReason: "TAKE_PROFIT",
	}); err != nil {
		t.Fatalf("seed trade: %v", err)
	}
	return s
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "running" || resp.LastSummary == nil {
		t.Errorf("Response = %+v, want running with the latest summary", resp)
	}
	if resp.LastSummary.TradeDate != "20260102" {
		t.Errorf("LastSummary.TradeDate = %s", resp.LastSummary.TradeDate)
	}
}

func TestHandleSummaries(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleSummaries(rec, httptest.NewRequest(http.MethodGet, "/summaries?from=20260101&to=20260131", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summaries []*domain.DaySummary
	if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].RealizedNetPnL != 47000 {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestHandleSummaries_RequiresRange(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleSummaries(rec, httptest.NewRequest(http.MethodGet, "/summaries", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleTrades(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleTrades(rec, httptest.NewRequest(http.MethodGet, "/trades?date=20260102", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var trades []*domain.TradeRecord
	if err := json.NewDecoder(rec.Body).Decode(&trades); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(trades) != 1 || trades[0].TradeID != "t-1" {
		t.Errorf("trades = %+v", trades)
	}

	rec = httptest.NewRecorder()
	s.handleTrades(rec, httptest.NewRequest(http.MethodGet, "/trades", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without date = %d, want 400", rec.Code)
	}
}
