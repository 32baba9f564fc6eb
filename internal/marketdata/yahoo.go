package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // exchange zones on hosts without a zoneinfo database

	"github.com/guregu/null/v5"

	"stockdash/internal/model"
)

// YahooProvider implements Provider over the public Yahoo Finance chart and
// search endpoints.
type YahooProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooProvider creates a provider against baseURL. An empty baseURL uses
// the public endpoint.
func NewYahooProvider(baseURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YahooProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				Currency             string   `json:"currency"`
				ExchangeName         string   `json:"exchangeName"`
				ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
				GMTOffset            int      `json:"gmtoffset"`
				ShortName            *string  `json:"shortName"`
				LongName             *string  `json:"longName"`
				RegularMarketPrice   float64  `json:"regularMarketPrice"`
				ChartPreviousClose   float64  `json:"chartPreviousClose"`
				PreviousClose        float64  `json:"previousClose"`
				RegularMarketVolume  int64    `json:"regularMarketVolume"`
				MarketCap            *float64 `json:"marketCap"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooSearch struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

func (p *YahooProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	u := p.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNoData, path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %.200s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func (p *YahooProvider) chart(ctx context.Context, ticker, period, interval string) (*yahooChart, error) {
	var chart yahooChart
	q := url.Values{"range": {period}, "interval": {interval}}
	if err := p.get(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), q, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return &chart, nil
}

// History fetches bars for req. Bars whose close is null (holidays, halted
// sessions) are skipped. A ticker the upstream does not know yields an
// empty series and no error. Timestamps are placed in the exchange's time zone.
func (p *YahooProvider) History(ctx context.Context, req Request) (model.Series, error) {
	req, err := req.Normalize()
	if err != nil {
		return model.Series{}, err
	}
	chart, err := p.chart(ctx, req.Ticker, req.Period, req.Interval)
	if errors.Is(err, ErrNoData) {
		// An unknown ticker is an empty history, not a failure.
		return model.Series{Ticker: req.Ticker, Interval: req.Interval}, nil
	}
	if err != nil {
		return model.Series{}, err
	}

	result := chart.Chart.Result[0]
	loc := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GMTOffset)
	s := model.Series{Ticker: req.Ticker, Interval: req.Interval}
	if len(result.Indicators.Quote) == 0 {
		return s, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue
		}
		bar := model.Bar{
			TS:    time.Unix(ts, 0).In(loc),
			Close: *c,
			Open:  valueOr(at(quote.Open, i), *c),
			High:  valueOr(at(quote.High, i), *c),
			Low:   valueOr(at(quote.Low, i), *c),
		}
		bar.Volume = valueOr(at(quote.Volume, i), 0)
		bars = append(bars, bar)
	}
	s.Bars = dedupeAscending(bars)
	return s, nil
}

// Info fetches ticker metadata from the chart endpoint's meta block.
// Sector is not published there and stays null.
func (p *YahooProvider) Info(ctx context.Context, ticker string) (model.TickerInfo, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return model.TickerInfo{}, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}
	chart, err := p.chart(ctx, ticker, "5d", "1d")
	if err != nil {
		return model.TickerInfo{}, err
	}
	meta := chart.Chart.Result[0].Meta
	prev := meta.PreviousClose
	if prev == 0 {
		prev = meta.ChartPreviousClose
	}
	return model.TickerInfo{
		Ticker:        ticker,
		ShortName:     null.StringFromPtr(meta.ShortName),
		LongName:      null.StringFromPtr(meta.LongName),
		Currency:      meta.Currency,
		Exchange:      meta.ExchangeName,
		Price:         meta.RegularMarketPrice,
		PreviousClose: prev,
		Volume:        meta.RegularMarketVolume,
		MarketCap:     null.FloatFromPtr(meta.MarketCap),
	}, nil
}

// Search queries the symbol search endpoint.
func (p *YahooProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidRequest)
	}
	var res yahooSearch
	q := url.Values{"q": {query}, "quotesCount": {"10"}, "newsCount": {"0"}}
	if err := p.get(ctx, "/v1/finance/search", q, &res); err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(res.Quotes))
	for _, r := range res.Quotes {
		name := r.ShortName
		if name == "" {
			name = r.LongName
		}
		out = append(out, model.SearchResult{
			Ticker:   r.Symbol,
			Name:     name,
			Exchange: r.Exchange,
			Type:     r.QuoteType,
		})
	}
	return out, nil
}

func exchangeLocation(name string, offset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("", offset)
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// dedupeAscending sorts bars by time and keeps the last of any bars sharing
// a timestamp (the chart API repeats the live bar).
func dedupeAscending(bars []model.Bar) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].TS.Equal(b.TS) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
