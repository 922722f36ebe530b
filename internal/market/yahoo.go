package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

const userAgent = "Mozilla/5.0 (compatible; catalyst-ai/1.0)"

// YahooClient reads the Yahoo Finance chart endpoint.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	return &YahooClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (y *YahooClient) Name() string { return "yahoo" }

func (y *YahooClient) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	doc, err := y.chart(ctx, ticker, "1d", "1d")
	if err != nil {
		return decimal.Zero, err
	}

	raw, err := jsonpath.Get("$.chart.result[0].meta.regularMarketPrice", doc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	price, ok := raw.(float64)
	if !ok || price <= 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	return decimal.NewFromFloat(price), nil
}

func (y *YahooClient) DailyBars(ctx context.Context, ticker string, days int) ([]models.Bar, error) {
	if days <= 0 {
		days = 60
	}
	doc, err := y.chart(ctx, ticker, "1d", chartRange(days))
	if err != nil {
		return nil, err
	}

	rawTimes, err := jsonpath.Get("$.chart.result[0].timestamp", doc)
	if err != nil {
		return nil, fmt.Errorf("%s bars: %w", ticker, ErrPriceNotFound)
	}
	rawQuote, err := jsonpath.Get("$.chart.result[0].indicators.quote[0]", doc)
	if err != nil {
		return nil, fmt.Errorf("%s bars: %w", ticker, ErrPriceNotFound)
	}

	times, _ := rawTimes.([]interface{})
	quote, _ := rawQuote.(map[string]interface{})
	opens, highs := floatSeries(quote["open"]), floatSeries(quote["high"])
	lows, closes, volumes := floatSeries(quote["low"]), floatSeries(quote["close"]), floatSeries(quote["volume"])

	bars := make([]models.Bar, 0, len(times))
	for i, rt := range times {
		ts, ok := rt.(float64)
		if !ok {
			continue
		}
		o, ok1 := at(opens, i)
		h, ok2 := at(highs, i)
		l, ok3 := at(lows, i)
		c, ok4 := at(closes, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}
		v, _ := at(volumes, i)
		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(ts), 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s bars: %w", ticker, ErrPriceNotFound)
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (y *YahooClient) chart(ctx context.Context, ticker, interval, rng string) (interface{}, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(ticker), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo request for %s failed: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, ticker)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo response: %w", err)
	}
	return doc, nil
}

func chartRange(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 21:
		return "1mo"
	case days <= 63:
		return "3mo"
	case days <= 126:
		return "6mo"
	default:
		return "1y"
	}
}

func floatSeries(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func at(series []interface{}, i int) (float64, bool) {
	if i >= len(series) {
		return 0, false
	}
	f, ok := series[i].(float64)
	return f, ok
}
