package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"golang-sentiment-panel/internal/pipeline/config"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiScorerRepository is a SentimentScorer backed by the Google Gemini
// API.
type geminiScorerRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiScorerRepository creates a new Gemini-backed SentimentScorer.
func NewGeminiScorerRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (SentimentScorer, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	tokenLimiter := ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute)

	return &geminiScorerRepository{
		cfg:            cfg,
		logger:         log,
		tokenLimiter:   tokenLimiter,
		requestLimiter: requestLimiter,
		genAiClient:    genAiClient,
	}, nil
}

type sentimentResponse struct {
	Sentiment float64 `json:"sentiment"`
}

// Score asks Gemini for a sentiment score in [-1, 1] for the given article.
func (r *geminiScorerRepository) Score(ctx context.Context, headline, body string) (float64, error) {
	prompt := buildSentimentPrompt(headline, body)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}

	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return 0, fmt.Errorf("failed to wait for token limit: %w", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to call Gemini API: %w", err)
	}

	return parseSentimentResponse(resp)
}

func parseSentimentResponse(resp *genai.GenerateContentResponse) (float64, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0, fmt.Errorf("invalid response from Gemini API: no content found")
	}

	jsonString := resp.Candidates[0].Content.Parts[0].Text
	jsonString = strings.Trim(jsonString, "`json\n`")

	var result sentimentResponse
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		return 0, fmt.Errorf("failed to unmarshal sentiment from Gemini response: %w", err)
	}

	if math.IsNaN(result.Sentiment) || math.IsInf(result.Sentiment, 0) {
		return 0, fmt.Errorf("Gemini returned a non-finite sentiment")
	}

	// Clamp to the contract range, the model occasionally drifts slightly out.
	if result.Sentiment > 1 {
		result.Sentiment = 1
	}
	if result.Sentiment < -1 {
		result.Sentiment = -1
	}
	return result.Sentiment, nil
}

func buildSentimentPrompt(headline, body string) string {
	return fmt.Sprintf(`Bạn là chuyên gia phân tích tin tức thị trường chứng khoán Việt Nam.

Hãy đánh giá sắc thái (sentiment) của bài báo dưới đây đối với thị trường hoặc doanh nghiệp được nhắc đến.

Thang điểm:
- -1.0: cực kỳ tiêu cực
-  0.0: trung lập
- +1.0: cực kỳ tích cực

Trả lời CHỈ bằng JSON với cấu trúc sau:
{"sentiment": <số thực từ -1.0 đến 1.0>}

Tiêu đề: %s
Nội dung: %s
`, headline, body)
}
