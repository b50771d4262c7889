package advisor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func geminiReply(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	require.NoError(t, err)
	return body
}

func newTestAdvisor(t *testing.T, handler http.HandlerFunc) *Advisor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "k", Model: "gemini-pro", Endpoint: srv.URL, Timeout: time.Second},
		WithHTTPClient(srv.Client()),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
}

func TestRecommendParsesModelOutput(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		var req generateRequest
		_ = json.Unmarshal(raw, &req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		_, _ = w.Write(geminiReply(t, "```json\n[{\"type\":\"rate\",\"title\":\"Go\",\"confidence\":140,\"impact\":\"high\"},{\"description\":\"wait\"}]\n```"))
	})

	recs := adv.Recommend(context.Background(), SwapRequest{FromToken: "AUTOX", ToToken: "SHIFT", Amount: "100"})
	require.Equal(t, "/models/gemini-pro:generateContent", gotPath)
	require.Equal(t, "k", gotKey)
	require.Contains(t, gotPrompt, "From: AUTOX")
	require.Len(t, recs, 2)
	require.Equal(t, "gemini-0", recs[0].ID)
	require.Equal(t, "rate", recs[0].Type)
	require.Equal(t, 100, recs[0].Confidence)
	require.Equal(t, "timing", recs[1].Type)
	require.Equal(t, "AI Recommendation", recs[1].Title)
	require.Equal(t, 75, recs[1].Confidence)
}

func TestRecommendFallsBackOnUpstreamError(t *testing.T) {
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	})
	recs := adv.Recommend(context.Background(), SwapRequest{FromToken: "AUTOX", ToToken: "SHIFT", Amount: "100", Rate: "1.5", FeeBps: 30})
	require.Len(t, recs, 3)
	require.Equal(t, "fallback-rate", recs[0].ID)
	require.Contains(t, recs[0].Description, "149.7000 SHIFT")
	require.Contains(t, recs[0].Description, "0.3%")
}

func TestRecommendFallsBackOnGarbage(t *testing.T) {
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(geminiReply(t, "I cannot help with that"))
	})
	recs := adv.Recommend(context.Background(), SwapRequest{FromToken: "AUTOX", ToToken: "SHIFT", Amount: "x"})
	require.Len(t, recs, 3)
	require.Contains(t, recs[0].Description, "AUTOX/SHIFT")
}

func TestWithoutKeyNeverCallsUpstream(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	adv := New(Config{Endpoint: srv.URL}, WithHTTPClient(srv.Client()))
	require.False(t, adv.Enabled())

	analysis := adv.Analyze(context.Background(), []string{"MATIC"}, "")
	require.Equal(t, "neutral", analysis.OverallSentiment)
	require.Len(t, analysis.Recommendations, 3)
	require.True(t, strings.Contains(analysis.Insights[0], "24h"))

	explanation := adv.Explain(context.Background(), map[string]any{"fromToken": "AUTOX", "toToken": "SHIFT", "rate": 1.5})
	require.Contains(t, explanation, "AUTOX to SHIFT")
	require.Contains(t, explanation, "1.5 rate")
	require.False(t, called)
}

func TestAnalyzeParsesModelOutput(t *testing.T) {
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(geminiReply(t, `{"overallSentiment":"bullish","volatility":"high","recommendations":[{"title":"x"}],"insights":["a","b"],"optimalTiming":{"bestTime":"now","confidence":60,"reason":"r"}}`))
	})
	analysis := adv.Analyze(context.Background(), []string{"AUTOX", "SHIFT"}, "7d")
	require.Equal(t, "bullish", analysis.OverallSentiment)
	require.Equal(t, "high", analysis.Volatility)
	require.Len(t, analysis.Recommendations, 1)
	require.Equal(t, []string{"a", "b"}, analysis.Insights)
	require.Equal(t, Timing{BestTime: "now", Confidence: 60, Reason: "r"}, analysis.OptimalTiming)
}

func TestExplainUsesModelText(t *testing.T) {
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(geminiReply(t, "  You swapped tokens.  "))
	})
	require.Equal(t, "You swapped tokens.", adv.Explain(context.Background(), map[string]any{"fromToken": "AUTOX"}))
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, "plain", stripFences(" plain "))
}
