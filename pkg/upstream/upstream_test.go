package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPortfolioClient_GetPortfolioDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/portfolio/details" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("userId"); got != "user-1" {
			t.Errorf("userId = %q, want user-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"holdings": {
				"AAPL": {"symbol":"AAPL","name":"Apple Inc.","currency":"USD","assetClass":"EQUITY","allocationInPercentage":60,"marketPrice":190.5,"quantity":10,"valueInBaseCurrency":1905}
			},
			"currency": "USD"
		}`))
	}))
	defer srv.Close()

	client := NewPortfolioClient(srv.URL)
	details, err := client.GetPortfolioDetails(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetPortfolioDetails() error = %v", err)
	}
	holding, ok := details.Holdings["AAPL"]
	if !ok {
		t.Fatalf("expected AAPL holding, got %+v", details.Holdings)
	}
	if holding.MarketPrice != 190.5 || holding.Allocation != 60 {
		t.Fatalf("unexpected holding: %+v", holding)
	}
}

func TestPortfolioClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewPortfolioClient(srv.URL)
	if _, err := client.GetPortfolioDetails(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error for upstream 500")
	}
}

func TestMarketClient_SearchSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "apple" {
			t.Errorf("query = %q, want apple", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"symbol":"AAPL","name":"Apple Inc.","currency":"USD","dataSource":"YAHOO"}]}`))
	}))
	defer srv.Close()

	client := NewMarketClient(srv.URL, nil)
	matches, err := client.SearchSymbols(context.Background(), "user-1", "apple")
	if err != nil {
		t.Fatalf("SearchSymbols() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "AAPL" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestOrdersClient_GetActivities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activities":[
			{"id":"a1","type":"BUY","symbol":"AAPL","quantity":10,"unitPrice":100,"fee":1,"currency":"USD","date":"2025-01-02T00:00:00Z"},
			{"id":"a2","type":"SELL","symbol":"AAPL","quantity":4,"unitPrice":120,"fee":1,"currency":"USD","date":"2025-02-02T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	client := NewOrdersClient(srv.URL)
	activities, err := client.GetActivities(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetActivities() error = %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("len(activities) = %d, want 2", len(activities))
	}
	if activities[0].Type != ActivityBuy || activities[1].Type != ActivitySell {
		t.Fatalf("unexpected activities: %+v", activities)
	}
}
