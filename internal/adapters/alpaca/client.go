package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultPaperBase = "https://paper-api.alpaca.markets"
	defaultLiveBase  = "https://api.alpaca.markets"
	defaultDataBase  = "https://data.alpaca.markets"
	defaultFeed      = "iex"

	defaultPaperStream = "wss://paper-api.alpaca.markets/stream"
	defaultLiveStream  = "wss://api.alpaca.markets/stream"
	defaultDataStream  = "wss://stream.data.alpaca.markets/v2/"

	// Rate limits al 60% del límite documentado: 200 req/min → 120/min → 2/s.
	tradingRatePerSec = 2
	dataRatePerSec    = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Config agrupa credenciales y endpoints. Los URLs vacíos usan los de producción
// (paper o live según Paper).
type Config struct {
	KeyID       string
	Secret      string
	Paper       bool
	TradeBase   string
	DataBase    string
	TradeStream string
	DataStream  string
	Feed        string
}

// Client es el HTTP client de Alpaca (trading + market data) con rate limiting y retries.
type Client struct {
	http          *http.Client
	cfg           Config
	tradeLimiter  *rate.Limiter
	dataLimiter   *rate.Limiter
	retryWaitBase time.Duration
}

// NewClient crea un Client con la configuración dada.
func NewClient(cfg Config) *Client {
	if cfg.TradeBase == "" {
		cfg.TradeBase = defaultLiveBase
		if cfg.Paper {
			cfg.TradeBase = defaultPaperBase
		}
	}
	if cfg.DataBase == "" {
		cfg.DataBase = defaultDataBase
	}
	if cfg.Feed == "" {
		cfg.Feed = defaultFeed
	}
	if cfg.TradeStream == "" {
		cfg.TradeStream = defaultLiveStream
		if cfg.Paper {
			cfg.TradeStream = defaultPaperStream
		}
	}
	if cfg.DataStream == "" {
		cfg.DataStream = defaultDataStream + cfg.Feed
	}
	return &Client{
		http:          &http.Client{Timeout: 10 * time.Second},
		cfg:           cfg,
		tradeLimiter:  rate.NewLimiter(tradingRatePerSec, 10),
		dataLimiter:   rate.NewLimiter(dataRatePerSec, 10),
		retryWaitBase: baseRetryWait,
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.do(ctx, limiter, http.MethodGet, url, nil, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, url string, body, out any) error {
	return c.do(ctx, limiter, http.MethodPost, url, body, out)
}

func (c *Client) delete(ctx context.Context, limiter *rate.Limiter, url string) error {
	return c.do(ctx, limiter, http.MethodDelete, url, nil, nil)
}

func (c *Client) do(ctx context.Context, limiter *rate.Limiter, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("APCA-API-KEY-ID", c.cfg.KeyID)
		req.Header.Set("APCA-API-SECRET-KEY", c.cfg.Secret)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.http.Do(req)
	}, out)
}

// APIError es una respuesta 4xx de Alpaca. No se reintenta.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Status, e.Message)
}

// doWithRetry ejecuta la función con backoff exponencial, respetando el contexto.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("alpaca: rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			var msg struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(b, &msg) != nil || msg.Message == "" {
				msg.Message = string(b)
			}
			return &APIError{Status: resp.StatusCode, Message: msg.Message}
		}

		defer resp.Body.Close()
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWaitBase
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
