package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cesargomez89/flixetl/internal/domain"
)

type rawPriceBar struct {
	Open             flexString `json:"open"`
	High             flexString `json:"high"`
	Low              flexString `json:"low"`
	Close            flexString `json:"close"`
	Volume           flexString `json:"volume"`
	TradeTime        flexString `json:"tradeTime"`
	TradeTimeInMills flexString `json:"tradeTimeinMills"`
}

type rawChart struct {
	TimeRange  flexString `json:"timeRange"`
	Symbol     flexString `json:"symbol"`
	AllSymbols []struct {
		Name flexString `json:"name"`
	} `json:"allSymbols"`
	PriceBars []rawPriceBar `json:"priceBars"`
}

var errMissing = errors.New("missing required value")

// CleanStock extracts the single chart object from a quote API response of
// shape {"data": {"<key>": {...chart...}}}. When data holds several charts the
// first key in lexical order wins. A bare chart object is accepted as well.
func CleanStock(raw io.Reader) (*domain.StockChart, error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(raw).Decode(&envelope); err != nil {
		return nil, &domain.ParseError{File: "stock data", Err: err}
	}

	chartJSON, err := selectChart(envelope)
	if err != nil {
		return nil, err
	}

	var chart rawChart
	if err := json.Unmarshal(chartJSON, &chart); err != nil {
		return nil, &domain.ParseError{File: "stock data", Err: err}
	}

	symbol := strings.TrimSpace(chart.Symbol.Value)
	if symbol == "" {
		return nil, &domain.NormalizationError{File: "stock data", Field: "symbol", Value: chart.Symbol.Value, Err: errMissing}
	}

	name := ""
	if len(chart.AllSymbols) > 0 {
		name = strings.TrimSpace(chart.AllSymbols[0].Name.Value)
	}
	if name == "" {
		name = symbol
	}

	out := &domain.StockChart{
		TimeRange: chart.TimeRange.Value,
		Symbol:    symbol,
		Name:      name,
		PriceBars: make([]domain.PriceBar, 0, len(chart.PriceBars)),
	}
	for _, bar := range chart.PriceBars {
		out.PriceBars = append(out.PriceBars, domain.PriceBar{
			Open:             ParseNullFloat(bar.Open.Value),
			High:             ParseNullFloat(bar.High.Value),
			Low:              ParseNullFloat(bar.Low.Value),
			Close:            ParseNullFloat(bar.Close.Value),
			Volume:           ParseNullInt(bar.Volume.Value),
			TradeTime:        bar.TradeTime.ptr(),
			TradeTimeInMills: ParseNullInt(bar.TradeTimeInMills.Value),
		})
	}
	return out, nil
}

func selectChart(envelope map[string]json.RawMessage) (json.RawMessage, error) {
	if _, ok := envelope["symbol"]; ok {
		b, err := json.Marshal(envelope)
		if err != nil {
			return nil, &domain.ParseError{File: "stock data", Err: err}
		}
		return b, nil
	}

	data, ok := envelope["data"]
	if !ok {
		return nil, &domain.ParseError{File: "stock data", Err: errors.New(`missing "data" object`)}
	}
	var charts map[string]json.RawMessage
	if err := json.Unmarshal(data, &charts); err != nil {
		return nil, &domain.ParseError{File: "stock data", Err: fmt.Errorf("decode data: %w", err)}
	}
	if len(charts) == 0 {
		return nil, &domain.ParseError{File: "stock data", Err: errors.New("no chart in data")}
	}

	keys := make([]string, 0, len(charts))
	for k := range charts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return charts[keys[0]], nil
}

// WriteStock encodes the cleaned stock artifact.
func WriteStock(w io.Writer, chart *domain.StockChart) error {
	return writeJSON(w, chart)
}

// ReadStock decodes the cleaned stock artifact.
func ReadStock(name string, r io.Reader) (*domain.StockChart, error) {
	var chart domain.StockChart
	if err := json.NewDecoder(r).Decode(&chart); err != nil {
		return nil, &domain.ParseError{File: name, Err: fmt.Errorf("decode stock chart: %w", err)}
	}
	if chart.Symbol == "" {
		return nil, &domain.NormalizationError{File: name, Field: "symbol", Err: errMissing}
	}
	return &chart, nil
}
