// Package advisor produces swap guidance from a generative model. Every call
// degrades to a deterministic answer derived from the request when the model is
// not configured or fails, so callers never see upstream errors.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ayushsaklani-min/AutoXshift/observability/logging"
)

// Recommendation is a single piece of swap guidance.
type Recommendation struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Confidence  int       `json:"confidence"`
	Impact      string    `json:"impact"`
	Action      string    `json:"action,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Timing describes the suggested execution window.
type Timing struct {
	BestTime   string `json:"bestTime"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// MarketAnalysis summarises conditions for a set of tokens.
type MarketAnalysis struct {
	OverallSentiment string           `json:"overallSentiment"`
	Volatility       string           `json:"volatility"`
	Recommendations  []Recommendation `json:"recommendations"`
	Insights         []string         `json:"insights"`
	OptimalTiming    Timing           `json:"optimalTiming"`
}

// SwapRequest describes a prospective swap.
type SwapRequest struct {
	FromToken string
	ToToken   string
	Amount    string
	// Rate and FeeBps are optional ledger terms used to ground the fallback.
	Rate   string
	FeeBps uint32
}

// Config wires the Gemini client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Advisor calls the model and falls back to deterministic guidance.
type Advisor struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Advisor) {
		if client != nil {
			a.client = client
		}
	}
}

// WithLogger installs a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Advisor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Advisor) {
		if now != nil {
			a.now = now
		}
	}
}

var errNoModel = errors.New("advisor model not configured")

// New constructs an Advisor.
func New(cfg Config, opts ...Option) *Advisor {
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	a := &Advisor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		a.logger.Warn("advisor api key not configured, using deterministic guidance")
	} else {
		a.logger.Info("advisor configured", "model", cfg.Model, logging.MaskField("api_key", cfg.APIKey))
	}
	return a
}

// Enabled reports whether the model is configured.
func (a *Advisor) Enabled() bool {
	return strings.TrimSpace(a.cfg.APIKey) != ""
}

// Recommend returns guidance for a prospective swap.
func (a *Advisor) Recommend(ctx context.Context, req SwapRequest) []Recommendation {
	prompt := fmt.Sprintf(`Analyze the following token swap and provide recommendations:
- From: %s
- To: %s
- Amount: %s

Provide 3-5 recommendations for optimal swap timing, rate optimization and risk management.
Return only a JSON array whose items have type, title, description, confidence (0-100), impact (high/medium/low) and action.`,
		req.FromToken, req.ToToken, req.Amount)
	text, err := a.generate(ctx, prompt)
	if err == nil {
		if recs := a.parseRecommendations(gjson.Parse(text)); len(recs) > 0 {
			return recs
		}
		err = errors.New("no recommendations in model response")
	}
	a.fallbackNotice("recommend", err)
	return a.fallbackRecommendations(req)
}

// Analyze returns a market analysis for tokens over timeframe.
func (a *Advisor) Analyze(ctx context.Context, tokens []string, timeframe string) MarketAnalysis {
	if strings.TrimSpace(timeframe) == "" {
		timeframe = "24h"
	}
	prompt := fmt.Sprintf(`Analyze the market conditions for these tokens: %s over %s.
Provide sentiment analysis, volatility assessment and trading recommendations.
Return only JSON with overallSentiment, volatility, recommendations array, insights array and optimalTiming object (bestTime, confidence, reason).`,
		strings.Join(tokens, ", "), timeframe)
	text, err := a.generate(ctx, prompt)
	if err == nil {
		doc := gjson.Parse(text)
		if doc.IsObject() && doc.Get("overallSentiment").Exists() {
			analysis := MarketAnalysis{
				OverallSentiment: doc.Get("overallSentiment").String(),
				Volatility:       doc.Get("volatility").String(),
				Recommendations:  a.parseRecommendations(doc.Get("recommendations")),
				OptimalTiming: Timing{
					BestTime:   doc.Get("optimalTiming.bestTime").String(),
					Confidence: int(doc.Get("optimalTiming.confidence").Int()),
					Reason:     doc.Get("optimalTiming.reason").String(),
				},
			}
			doc.Get("insights").ForEach(func(_, value gjson.Result) bool {
				analysis.Insights = append(analysis.Insights, value.String())
				return true
			})
			return analysis
		}
		err = errors.New("unexpected analysis shape")
	}
	a.fallbackNotice("analyze", err)
	return a.fallbackAnalysis(tokens, timeframe)
}

// Explain describes a swap in plain language.
func (a *Advisor) Explain(ctx context.Context, swap map[string]any) string {
	encoded, _ := json.MarshalIndent(swap, "", "  ")
	prompt := fmt.Sprintf(`Explain this swap transaction in simple terms for a non-technical user:
%s

Focus on what the transaction does, why it might be beneficial and any risks involved.`, encoded)
	text, err := a.generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	a.fallbackNotice("explain", err)
	return fallbackExplanation(swap)
}

func (a *Advisor) fallbackNotice(op string, err error) {
	if errors.Is(err, errNoModel) {
		return
	}
	a.logger.Warn("advisor falling back to deterministic guidance", "operation", op, "error", err)
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

func (a *Advisor) generate(ctx context.Context, prompt string) (string, error) {
	if !a.Enabled() {
		return "", errNoModel
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	body, err := json.Marshal(generateRequest{Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(a.cfg.Endpoint, "/"), url.PathEscape(a.cfg.Model), url.QueryEscape(a.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		// The request URL carries the key; never surface it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return "", urlErr.Err
		}
		return "", err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(payload, "error.message").String()
		return "", fmt.Errorf("generate content: status %d %s", resp.StatusCode, msg)
	}
	text := gjson.GetBytes(payload, "candidates.0.content.parts.0.text").String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("generate content: empty response")
	}
	return stripFences(text), nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func (a *Advisor) parseRecommendations(list gjson.Result) []Recommendation {
	if !list.IsArray() {
		return nil
	}
	now := a.now().UTC()
	var out []Recommendation
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		rec := Recommendation{
			ID:          fmt.Sprintf("gemini-%d", len(out)),
			Type:        orDefault(item.Get("type").String(), "timing"),
			Title:       orDefault(item.Get("title").String(), "AI Recommendation"),
			Description: item.Get("description").String(),
			Confidence:  75,
			Impact:      orDefault(item.Get("impact").String(), "medium"),
			Action:      item.Get("action").String(),
			Timestamp:   now,
		}
		if c := item.Get("confidence"); c.Exists() {
			rec.Confidence = clampConfidence(int(c.Int()))
		}
		out = append(out, rec)
		return true
	})
	return out
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func clampConfidence(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
