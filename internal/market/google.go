package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// priceSelector is the element Google Finance renders the last price into.
const priceSelector = "div.YMlKec.fxKbKc"

var exchangeBySuffix = map[string]string{
	".NS": "NSE",
	".BO": "BOM",
}

// GoogleFinanceClient scrapes the Google Finance quote page. It only knows
// Indian listings and is used as a fallback for local tickers.
type GoogleFinanceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGoogleFinanceClient(baseURL string, timeout time.Duration) *GoogleFinanceClient {
	return &GoogleFinanceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *GoogleFinanceClient) Name() string { return "google_finance" }

func (g *GoogleFinanceClient) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	quote, ok := googleQuote(ticker)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s has no google finance listing: %w", ticker, ErrPriceNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/quote/"+quote, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build google finance request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("google finance request for %s failed: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("google finance returned status %d for %s", resp.StatusCode, ticker)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse google finance page: %w", err)
	}

	text := strings.TrimSpace(doc.Find(priceSelector).First().Text())
	price, ok := parsePriceText(text)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	return price, nil
}

// googleQuote maps ONGC.NS to ONGC:NSE.
func googleQuote(ticker string) (string, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for suffix, exchange := range exchangeBySuffix {
		if strings.HasSuffix(ticker, suffix) {
			return strings.TrimSuffix(ticker, suffix) + ":" + exchange, true
		}
	}
	return "", false
}

// parsePriceText reads "₹2,345.60" style text.
func parsePriceText(text string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || f <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
