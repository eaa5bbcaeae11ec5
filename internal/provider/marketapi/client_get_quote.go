package marketapi

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"marketquotes/internal/httpx"
	"marketquotes/internal/provider"
)

// ErrRateLimited reports a 429 from the upstream.
var ErrRateLimited = errors.New("rate limited")

// Snapshot is a single quote as reported by the API.
type Snapshot struct {
	Symbol        string
	Name          string
	Price         decimal.Decimal
	Change        *decimal.Decimal
	ChangePercent *decimal.Decimal
	PreviousClose *decimal.Decimal
	Currency      string
	Timestamp     *time.Time
}

// GetQuote retrieves the latest quote for symbol of the given instrument
// type.
func (c *Client) GetQuote(ctx context.Context, kind, symbol string, opts ...ClientOption) (*Snapshot, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
		paths:      c.paths,
	}
	for _, opt := range opts {
		opt(override)
	}
	if override.baseURL == "" {
		return nil, errors.New("missing base URL")
	}

	query := maps.Clone(override.query)
	query.Set("symbol", symbol)
	if kind != "" {
		query.Set("type", kind)
	}

	url := fmt.Sprintf("%s/v1/quote?%s", strings.TrimRight(override.baseURL, "/"), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", symbol, provider.ErrNotFound)

	case http.StatusBadRequest:
		return nil, fmt.Errorf("bad request with symbol=%q", symbol)

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return nil, ErrRateLimited

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	body, err := httpx.ReadBody(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return override.paths.decode(symbol, body)
}

func (p Paths) decode(symbol string, body []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", provider.ErrMalformed)
	}
	doc := gjson.ParseBytes(body)

	price, ok, err := decimalAt(doc, p.Price)
	if err != nil {
		return nil, err
	}
	if !ok {
		// {"error": "unknown symbol"} style bodies with a 200
		return nil, fmt.Errorf("%s: %w", symbol, provider.ErrNotFound)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive price %s", provider.ErrMalformed, price)
	}

	snap := &Snapshot{Symbol: symbol, Price: price}
	for _, f := range []struct {
		path string
		dst  **decimal.Decimal
	}{
		{p.Change, &snap.Change},
		{p.ChangePercent, &snap.ChangePercent},
		{p.PreviousClose, &snap.PreviousClose},
	} {
		d, ok, err := decimalAt(doc, f.path)
		if err != nil {
			return nil, err
		}
		if ok {
			*f.dst = &d
		}
	}

	if snap.Currency, err = stringAt(doc, p.Currency); err != nil {
		return nil, err
	}
	if snap.Name, err = stringAt(doc, p.Name); err != nil {
		return nil, err
	}
	if snap.Timestamp, err = timeAt(doc, p.Timestamp); err != nil {
		return nil, err
	}
	return snap, nil
}

func decimalAt(doc gjson.Result, path string) (decimal.Decimal, bool, error) {
	if path == "" {
		return decimal.Zero, false, nil
	}
	v := doc.Get(path)
	switch v.Type {
	case gjson.Null:
		return decimal.Zero, false, nil
	case gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%w: %s: %v", provider.ErrMalformed, path, err)
		}
		return d, true, nil
	case gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Str))
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%w: %s is not numeric", provider.ErrMalformed, path)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("%w: %s has type %s", provider.ErrMalformed, path, v.Type)
	}
}

func stringAt(doc gjson.Result, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	v := doc.Get(path)
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return strings.TrimSpace(v.Str), nil
	default:
		return "", fmt.Errorf("%w: %s has type %s", provider.ErrMalformed, path, v.Type)
	}
}

// timeAt accepts unix seconds, unix milliseconds or an RFC 3339 string.
func timeAt(doc gjson.Result, path string) (*time.Time, error) {
	if path == "" {
		return nil, nil
	}
	v := doc.Get(path)
	switch v.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
		n := v.Int()
		var ts time.Time
		if n > 1e12 {
			ts = time.UnixMilli(n).UTC()
		} else {
			ts = time.Unix(n, 0).UTC()
		}
		return &ts, nil
	case gjson.String:
		ts, err := time.Parse(time.RFC3339, v.Str)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", provider.ErrMalformed, path, err)
		}
		ts = ts.UTC()
		return &ts, nil
	default:
		return nil, fmt.Errorf("%w: %s has type %s", provider.ErrMalformed, path, v.Type)
	}
}
