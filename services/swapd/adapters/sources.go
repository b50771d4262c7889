package adapters

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/oracle"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

const defaultRatePath = "rate"

// Registry constructs oracle sources based on configuration.
// Static sources without their own table use Rates.
type Registry struct {
	HTTPClient *http.Client
	Rates      map[string]string
	Now        func() time.Time
}

// NewRegistry builds a registry with sane defaults.
func NewRegistry() *Registry {
	return &Registry{HTTPClient: &http.Client{Timeout: 10 * time.Second}, Now: time.Now}
}

// Build creates a source from the supplied configuration.
func (r *Registry) Build(cfg config.Source) (oracle.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "static":
		table := cfg.Rates
		if len(table) == 0 {
			table = r.Rates
		}
		return newStaticSource(label(cfg.Name, "static"), table, r.now)
	case "http":
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, fmt.Errorf("source %q: endpoint required", cfg.Name)
		}
		return &httpSource{
			name:          label(cfg.Name, "http"),
			client:        r.client(),
			endpoint:      strings.TrimSpace(cfg.Endpoint),
			apiKey:        strings.TrimSpace(cfg.APIKey),
			ratePath:      label(cfg.RatePath, defaultRatePath),
			timestampPath: strings.TrimSpace(cfg.TimestampPath),
			now:           r.now,
		}, nil
	default:
		return nil, fmt.Errorf("unknown oracle type %q", cfg.Type)
	}
}

// BuildAll constructs every configured source.
func (r *Registry) BuildAll(cfgs []config.Source) ([]oracle.Source, error) {
	sources := make([]oracle.Source, 0, len(cfgs))
	for _, cfg := range cfgs {
		src, err := r.Build(cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (r *Registry) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type staticSource struct {
	name  string
	rates map[string]*big.Rat
	now   func() time.Time
}

func newStaticSource(name string, table map[string]string, now func() time.Time) (*staticSource, error) {
	src := &staticSource{name: name, rates: make(map[string]*big.Rat, len(table)), now: now}
	for pair, raw := range table {
		base, quote, ok := strings.Cut(pair, "/")
		if !ok {
			return nil, fmt.Errorf("source %q: invalid pair %q", name, pair)
		}
		rate, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
		if !ok || rate.Sign() <= 0 {
			return nil, fmt.Errorf("source %q: invalid rate %q for %s", name, raw, pair)
		}
		src.rates[storage.PairKey(base, quote)] = rate
	}
	return src, nil
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(_ context.Context, base, quote string) (oracle.Quote, error) {
	rate, ok := s.rates[storage.PairKey(base, quote)]
	if !ok {
		return oracle.Quote{}, fmt.Errorf("no static rate for %s", storage.PairKey(base, quote))
	}
	return oracle.Quote{Rate: new(big.Rat).Set(rate), Timestamp: s.now()}, nil
}

// httpSource polls a JSON endpoint. The endpoint may contain {base} and
// {quote} placeholders; rate and timestamp are extracted with gjson paths.
type httpSource struct {
	name          string
	client        *http.Client
	endpoint      string
	apiKey        string
	ratePath      string
	timestampPath string
	now           func() time.Time
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Fetch(ctx context.Context, base, quote string) (oracle.Quote, error) {
	target := strings.NewReplacer(
		"{base}", url.PathEscape(strings.ToUpper(base)),
		"{quote}", url.PathEscape(strings.ToUpper(quote)),
		"{base_lower}", url.PathEscape(strings.ToLower(base)),
		"{quote_lower}", url.PathEscape(strings.ToLower(quote)),
	).Replace(s.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return oracle.Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return oracle.Quote{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return oracle.Quote{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return oracle.Quote{}, fmt.Errorf("%s: unexpected status %d", s.name, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return oracle.Quote{}, fmt.Errorf("%s: invalid json payload", s.name)
	}
	paths := []string{s.ratePath}
	if s.timestampPath != "" {
		paths = append(paths, s.timestampPath)
	}
	results := gjson.GetManyBytes(body, paths...)
	if !results[0].Exists() {
		return oracle.Quote{}, fmt.Errorf("%s: rate path %q missing", s.name, s.ratePath)
	}
	rate, ok := new(big.Rat).SetString(strings.TrimSpace(results[0].String()))
	if !ok || rate.Sign() <= 0 {
		return oracle.Quote{}, fmt.Errorf("%s: invalid rate %q", s.name, results[0].String())
	}
	ts := s.now()
	if len(results) > 1 && results[1].Exists() {
		parsed, err := parseTimestamp(results[1])
		if err != nil {
			return oracle.Quote{}, fmt.Errorf("%s: %w", s.name, err)
		}
		ts = parsed
	}
	return oracle.Quote{Rate: rate, Timestamp: ts}, nil
}

func parseTimestamp(value gjson.Result) (time.Time, error) {
	if value.Type == gjson.Number {
		secs := value.Int()
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value.String()))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value.String())
	}
	return parsed, nil
}

func label(name, fallback string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed != "" {
		return trimmed
	}
	return fallback
}
