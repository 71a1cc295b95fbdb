// Package backend talks to the candidate lookup service: query/, guess/,
// split/, send/ and weChat/.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Endpoint names one lookup route prefix.
type Endpoint string

const (
	EndpointQuery  Endpoint = "query"
	EndpointGuess  Endpoint = "guess"
	EndpointSplit  Endpoint = "split"
	EndpointSend   Endpoint = "send"
	EndpointWeChat Endpoint = "weChat"
)

const (
	defaultTimeout  = 10 * time.Second
	errorBodyLimit  = 512
	defaultBaseURL  = "http://127.0.0.1:8000/"
	weChatActionKey = "display"
)

// DefaultKeyLimits mirrors the route patterns of the lookup service, which
// reject longer keys with a 404.
var DefaultKeyLimits = map[Endpoint]int{
	EndpointQuery:  20,
	EndpointGuess:  20,
	EndpointSplit:  300,
	EndpointSend:   300,
	EndpointWeChat: 20,
}

var (
	// ErrEmptyKey is returned when a lookup key is blank.
	ErrEmptyKey = errors.New("lookup key is empty")
	// ErrKeyTooLong is returned when a key exceeds the endpoint's limit.
	ErrKeyTooLong = errors.New("lookup key too long")
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Endpoint Endpoint
	Status   string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s lookup failed: %s (%s)", e.Endpoint, e.Status, e.Body)
}

// Config describes how to reach the lookup service.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	TrailingSlash bool
	// KeyLimits caps key length in runes per endpoint. Zero or missing
	// entries fall back to DefaultKeyLimits; negative disables the check.
	KeyLimits  map[Endpoint]int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues lookups. Identical requests that are in flight at the same
// time share one round trip.
type Client struct {
	base          string
	trailingSlash bool
	limits        map[Endpoint]int
	http          *http.Client
	logger        *zap.Logger
	flight        singleflight.Group
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: unsupported scheme %q", base, parsed.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient.Timeout = timeout
	}

	limits := make(map[Endpoint]int, len(DefaultKeyLimits))
	for endpoint, limit := range DefaultKeyLimits {
		limits[endpoint] = limit
	}
	for endpoint, limit := range cfg.KeyLimits {
		if limit != 0 {
			limits[endpoint] = limit
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:          strings.TrimRight(base, "/"),
		trailingSlash: cfg.TrailingSlash,
		limits:        limits,
		http:          httpClient,
		logger:        logger.Named("backend"),
	}, nil
}

// Query looks up candidates for the typed text.
func (c *Client) Query(ctx context.Context, text string) (QueryResult, error) {
	var result QueryResult
	if err := c.getJSON(ctx, EndpointQuery, text, &result); err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// Guess looks up sentences or follow-up words containing word.
func (c *Client) Guess(ctx context.Context, word string) (SuggestResult, error) {
	var result SuggestResult
	if err := c.getJSON(ctx, EndpointGuess, word, &result); err != nil {
		return SuggestResult{}, err
	}
	return result, nil
}

// Split breaks a sentence into fragments.
func (c *Client) Split(ctx context.Context, sentence string) ([]string, error) {
	var fragments Sequence[string]
	if err := c.getJSON(ctx, EndpointSplit, sentence, &fragments); err != nil {
		return nil, err
	}
	return fragments, nil
}

// Send forwards the composed text. The acknowledgement is opaque.
func (c *Client) Send(ctx context.Context, text string) (json.RawMessage, error) {
	return c.get(ctx, EndpointSend, text)
}

// WeChat asks the service to bring the messaging window forward.
func (c *Client) WeChat(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, EndpointWeChat, weChatActionKey)
}

func (c *Client) getJSON(ctx context.Context, endpoint Endpoint, key string, target any) error {
	body, err := c.get(ctx, endpoint, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint Endpoint, key string) (json.RawMessage, error) {
	target, err := c.urlFor(endpoint, key)
	if err != nil {
		return nil, err
	}
	ch := c.flight.DoChan(target, func() (any, error) {
		return c.fetch(ctx, endpoint, target)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("lookup shared", zap.String("endpoint", string(endpoint)), zap.String("key", key))
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *Client) fetch(ctx context.Context, endpoint Endpoint, target string) (json.RawMessage, error) {
	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("lookup failed", zap.String("endpoint", string(endpoint)), zap.Error(err))
		return nil, fmt.Errorf("%s lookup: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		statusErr := &StatusError{Endpoint: endpoint, Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		c.logger.Warn("lookup rejected", zap.String("endpoint", string(endpoint)), zap.Int("status", resp.StatusCode))
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	c.logger.Debug("lookup done",
		zap.String("endpoint", string(endpoint)),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(started)),
	)
	return json.RawMessage(body), nil
}

func (c *Client) urlFor(endpoint Endpoint, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s: %w", endpoint, ErrEmptyKey)
	}
	if limit := c.limits[endpoint]; limit > 0 && utf8.RuneCountInString(key) > limit {
		return "", fmt.Errorf("%s: %w (%d > %d runes)", endpoint, ErrKeyTooLong, utf8.RuneCountInString(key), limit)
	}
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteByte('/')
	b.WriteString(string(endpoint))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(key))
	if c.trailingSlash {
		b.WriteByte('/')
	}
	return b.String(), nil
}
