package normalize

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cesargomez89/flixetl/internal/domain"
)

const stockJSON = `{
  "data": {
    "chartData": {
      "timeRange": "ALL",
      "symbol": "NFLX",
      "allSymbols": [{"name": "Netflix Inc", "symbol": "NFLX"}],
      "priceBars": [
        {"open": "1.0", "high": 2.5, "low": "0.5", "close": "2.0", "volume": "1000", "tradeTime": "20020523000000", "tradeTimeinMills": "1022112000000"},
        {"open": null, "high": "N/A", "low": 1, "close": 1, "volume": null, "tradeTime": null, "tradeTimeinMills": null}
      ]
    }
  }
}`

func TestCleanStock(t *testing.T) {
	chart, err := CleanStock(strings.NewReader(stockJSON))
	if err != nil {
		t.Fatalf("CleanStock failed: %v", err)
	}
	if chart.Symbol != "NFLX" || chart.Name != "Netflix Inc" || chart.TimeRange != "ALL" {
		t.Errorf("unexpected chart header: %+v", chart)
	}
	if len(chart.PriceBars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(chart.PriceBars))
	}

	first := chart.PriceBars[0]
	if first.Open == nil || *first.Open != 1.0 || first.High == nil || *first.High != 2.5 {
		t.Errorf("numeric strings and numbers should both parse: %+v", first)
	}
	if first.Volume == nil || *first.Volume != 1000 {
		t.Errorf("unexpected volume %v", first.Volume)
	}
	if first.TradeTime == nil || *first.TradeTime != "20020523000000" {
		t.Errorf("unexpected trade time %v", first.TradeTime)
	}

	second := chart.PriceBars[1]
	if second.Open != nil || second.High != nil || second.Volume != nil || second.TradeTime != nil {
		t.Errorf("null and non-numeric fields should be nil: %+v", second)
	}
}

func TestCleanStock_MissingSymbol(t *testing.T) {
	_, err := CleanStock(strings.NewReader(`{"data": {"chartData": {"timeRange": "ALL", "priceBars": []}}}`))
	var ne *domain.NormalizationError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}
	if ne.Field != "symbol" {
		t.Errorf("expected symbol field, got %q", ne.Field)
	}
}

func TestCleanStock_NameFallsBackToSymbol(t *testing.T) {
	chart, err := CleanStock(strings.NewReader(`{"symbol": "NFLX", "priceBars": []}`))
	if err != nil {
		t.Fatalf("CleanStock failed: %v", err)
	}
	if chart.Name != "NFLX" {
		t.Errorf("expected name fallback, got %q", chart.Name)
	}
}

func TestCleanStock_Malformed(t *testing.T) {
	for _, in := range []string{`[]`, `{}`, `{"data": {}}`, `{"data": "x"}`} {
		_, err := CleanStock(strings.NewReader(in))
		var pe *domain.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("expected ParseError for %s, got %v", in, err)
		}
	}
}

func TestStockRoundTrip(t *testing.T) {
	chart, err := CleanStock(strings.NewReader(stockJSON))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteStock(&buf, chart); err != nil {
		t.Fatalf("WriteStock failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"tradeTimeinMills": 1022112000000`) {
		t.Errorf("unexpected artifact:\n%s", buf.String())
	}

	back, err := ReadStock("cleaned", &buf)
	if err != nil {
		t.Fatalf("ReadStock failed: %v", err)
	}
	if back.Symbol != "NFLX" || len(back.PriceBars) != 2 {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
