package brapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"investfolio/internal/marketdata"
)

func TestParseQuoteHistory(t *testing.T) {
	body := []byte(`{"results":[{"symbol":"PETR4","historicalDataPrice":[
		{"date":1704067200,"close":35.5},
		{"date":1704153600,"close":null},
		{"date":1704240000,"close":36.1}
	]}]}`)
	candles, err := parseQuoteHistory(body, time.Time{})
	if err != nil {
		t.Fatalf("parseQuoteHistory: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 35.5 || candles[1].Close != 36.1 {
		t.Fatalf("unexpected closes: %+v", candles)
	}
	if !candles[0].Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first date: %v", candles[0].Date)
	}
	for i, c := range candles {
		var point struct {
			Date int64 `json:"date"`
		}
		if err := json.Unmarshal(c.Raw, &point); err != nil || point.Date == 0 {
			t.Fatalf("candle %d carries no source payload: raw=%s err=%v", i, c.Raw, err)
		}
	}
}

func TestParseQuoteHistorySinceFilter(t *testing.T) {
	body := []byte(`{"results":[{"symbol":"PETR4","historicalDataPrice":[
		{"date":1704067200,"close":35.5},
		{"date":1704240000,"close":36.1}
	]}]}`)
	candles, err := parseQuoteHistory(body, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parseQuoteHistory: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 36.1 {
		t.Fatalf("since filter failed: %+v", candles)
	}
}

func TestParseQuoteHistoryEmpty(t *testing.T) {
	if _, err := parseQuoteHistory([]byte(`{"results":[]}`), time.Time{}); err != marketdata.ErrNoHistory {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestParseDatedValues(t *testing.T) {
	body := []byte(`{"prime-rate":[
		{"date":"02/01/2024","value":"0.043739"},
		{"date":"03/01/2024","value":"0,043739"},
		{"date":"bogus","value":"1"}
	]}`)
	candles, err := parseDatedValues(body, "prime-rate", time.Time{})
	if err != nil {
		t.Fatalf("parseDatedValues: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 0.043739 || candles[1].Close != 0.043739 {
		t.Fatalf("unexpected values: %+v", candles)
	}
	for i, c := range candles {
		if len(c.Raw) == 0 {
			t.Fatalf("candle %d carries no source payload", i)
		}
	}
}

func TestParseCurrencyKeepsRawPayload(t *testing.T) {
	body := []byte(`{"currency":[{"bidPrice":"5,43","updatedAtDate":"2024-01-05","historicalData":[
		{"date":1704412800,"close":4.87}
	]}]}`)
	candles, err := parseCurrency(body, time.Time{})
	if err != nil {
		t.Fatalf("parseCurrency: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 4.87 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
	var point struct {
		Close float64 `json:"close"`
	}
	if err := json.Unmarshal(candles[0].Raw, &point); err != nil || point.Close != 4.87 {
		t.Fatalf("candle carries no source payload: raw=%s err=%v", candles[0].Raw, err)
	}
}

func TestParseCurrencySpotFallback(t *testing.T) {
	body := []byte(`{"currency":[{"bidPrice":"5,43","updatedAtDate":"2024-01-05","historicalData":[]}]}`)
	candles, err := parseCurrency(body, time.Time{})
	if err != nil {
		t.Fatalf("parseCurrency: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 5.43 {
		t.Fatalf("spot fallback failed: %+v", candles)
	}
	if !candles[0].Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", candles[0].Date)
	}
	if len(candles[0].Raw) == 0 {
		t.Fatalf("spot candle carries no source payload")
	}
}

func TestRangeFor(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		since time.Time
		want  string
	}{
		{time.Time{}, "max"},
		{now.AddDate(0, 0, -3), "5d"},
		{now.AddDate(0, 0, -20), "1mo"},
		{now.AddDate(0, 0, -200), "1y"},
		{now.AddDate(-8, 0, 0), "max"},
	}
	for _, c := range cases {
		if got := rangeFor(c.since); got != c.want {
			t.Fatalf("rangeFor(%v) = %q, want %q", c.since, got, c.want)
		}
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":true,"message":"nope"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, "tok")
	_, err := client.QuoteHistory(context.Background(), "PETR4", time.Time{})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

func TestClientSendsToken(t *testing.T) {
	var gotToken, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		gotRange = r.URL.Query().Get("range")
		w.Write([]byte(`{"results":[{"symbol":"PETR4","historicalDataPrice":[{"date":1704067200,"close":10}]}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, "secret")
	if _, err := client.QuoteHistory(context.Background(), "PETR4", time.Time{}); err != nil {
		t.Fatalf("QuoteHistory: %v", err)
	}
	if gotToken != "secret" {
		t.Fatalf("token not forwarded, got %q", gotToken)
	}
	if gotRange != "max" {
		t.Fatalf("unexpected range: %q", gotRange)
	}
}
