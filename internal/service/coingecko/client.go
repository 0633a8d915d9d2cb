package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	upstream "CoinCast/internal/service/metrics"
	xhttp "CoinCast/pkg/http"
	"CoinCast/pkg/util"
)

const apiKeyHeader = "x-cg-demo-api-key"

// Config holds the CoinGecko endpoint parameters.
type Config struct {
	BaseURL    string
	APIKey     string
	CoinID     string
	VsCurrency string
	Days       int
	CandleTail int
	Timeout    time.Duration
}

// Client implements MarketDataSource over the CoinGecko REST API.
type Client struct {
	cfg  Config
	http *xhttp.Client
}

// New creates a CoinGecko MarketDataSource.
func New(cfg Config) drepo.MarketDataSource {
	return newClient(cfg)
}

func newClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Days < 1 {
		cfg.Days = 1
	}
	if cfg.CandleTail < 1 {
		cfg.CandleTail = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, xhttp.WithHeader(apiKeyHeader, cfg.APIKey))
	}
	return &Client{cfg: cfg, http: xhttp.NewClient(opts...)}
}

// FetchCandles returns the most recent CandleTail OHLC intervals, oldest first.
// The endpoint answers with [[epoch_ms, open, high, low, close], ...].
func (c *Client) FetchCandles(ctx context.Context) ([]models.CandleRecord, error) {
	var body []byte
	err := c.get(ctx, "ohlc", fmt.Sprintf("%s/coins/%s/ohlc", c.cfg.BaseURL, c.cfg.CoinID), map[string][]string{
		"vs_currency": {c.cfg.VsCurrency},
		"days":        {strconv.Itoa(c.cfg.Days)},
	}, &body)
	if err != nil {
		return nil, err
	}

	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: ohlc payload: %v", models.ErrDecode, err)
	}

	if len(raw) > c.cfg.CandleTail {
		raw = raw[len(raw)-c.cfg.CandleTail:]
	}

	out := make([]models.CandleRecord, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 5 {
			return nil, fmt.Errorf("%w: ohlc entry %d has %d values, want 5", models.ErrDecode, i, len(entry))
		}
		out = append(out, models.CandleRecord{
			Timestamp: util.FromUnixMillisFloat(entry[0]),
			Open:      entry[1],
			High:      entry[2],
			Low:       entry[3],
			Close:     entry[4],
		})
	}
	return out, nil
}

type coinResponse struct {
	LastUpdated string `json:"last_updated"`
	MarketData  *struct {
		MarketCap   map[string]float64 `json:"market_cap"`
		TotalVolume map[string]float64 `json:"total_volume"`
	} `json:"market_data"`
}

// FetchMeta returns the current market cap and 24h volume sample.
func (c *Client) FetchMeta(ctx context.Context) (models.MetaRecord, error) {
	var body []byte
	err := c.get(ctx, "coin", fmt.Sprintf("%s/coins/%s", c.cfg.BaseURL, c.cfg.CoinID), map[string][]string{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}, &body)
	if err != nil {
		return models.MetaRecord{}, err
	}

	var resp coinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MetaRecord{}, fmt.Errorf("%w: coin payload: %v", models.ErrDecode, err)
	}

	ts, ok := util.ParseTime(resp.LastUpdated)
	if !ok {
		return models.MetaRecord{}, fmt.Errorf("%w: last_updated %q", models.ErrDecode, resp.LastUpdated)
	}
	if resp.MarketData == nil {
		return models.MetaRecord{}, fmt.Errorf("%w: market_data missing", models.ErrDecode)
	}
	mcap, ok := resp.MarketData.MarketCap[c.cfg.VsCurrency]
	if !ok {
		return models.MetaRecord{}, fmt.Errorf("%w: market_cap.%s missing", models.ErrDecode, c.cfg.VsCurrency)
	}
	vol, ok := resp.MarketData.TotalVolume[c.cfg.VsCurrency]
	if !ok {
		return models.MetaRecord{}, fmt.Errorf("%w: total_volume.%s missing", models.ErrDecode, c.cfg.VsCurrency)
	}

	return models.MetaRecord{Timestamp: ts, MarketCap: mcap, TotalVolume: vol}, nil
}

func (c *Client) get(ctx context.Context, endpoint, url string, query map[string][]string, dest *[]byte) error {
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: query,
	}, dest)
	upstream.Observe("coingecko_"+endpoint, start, err)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: %s returned %d", models.ErrTransport, endpoint, se.Code)
		}
		return fmt.Errorf("%w: %s: %v", models.ErrTransport, endpoint, err)
	}
	return nil
}
