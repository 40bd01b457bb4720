package gasoracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSuggestedGasPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","result":{"ProposeGasPrice":"23"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	price, err := client.SuggestedGasPrice(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != "23" {
		t.Fatalf("price mismatch: %s", price)
	}
}

func TestSuggestedGasPriceBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.SuggestedGasPrice(context.Background()); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestSuggestedGasPriceEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","result":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.SuggestedGasPrice(context.Background()); err == nil {
		t.Fatalf("expected error for missing price")
	}
}
