// Package openai implements domain.Judge on an OpenAI-compatible chat
// completion API, plus a caching decorator for any judge.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gogpt "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
)

var tracer = otel.Tracer("blow-storage/openai")

// Judge operations, used as metric labels and span attributes.
const (
	opTags  = "tags"
	opTrust = "trust"
)

const (
	tagsPrompt = `You tag anonymous public-interest reports from Kenya.
Reply with a JSON object {"tags": [...]} holding at most 6 short lowercase tags.
Prefer place names (e.g. nairobi, kibera) and topics such as corruption, education,
healthcare, police, environment, government, transport, infrastructure, accountability, abuse.
Add "urgent" when the report describes an emergency.`

	trustPrompt = `You rate how credible and specific an anonymous public-interest report is.
Consider concrete detail (places, dates, institutions) and internal consistency.
Reply with a JSON object {"score": n} where n is an integer from 0 (not credible) to 100 (highly credible).`
)

// Config configures the model-backed judge.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Judge implements domain.Judge using chat completions.
type Judge struct {
	client  *gogpt.Client
	model   string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewJudge creates a model-backed judge. An empty BaseURL targets the public OpenAI API.
func NewJudge(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Judge {
	clientCfg := gogpt.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Judge{
		client:  gogpt.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		logger:  logger,
		metrics: metrics,
	}
}

type tagsReply struct {
	Tags []string `json:"tags"`
}

type trustReply struct {
	Score *float64 `json:"score"`
}

// SuggestTags asks the model for tags. The caller normalizes the result.
func (j *Judge) SuggestTags(ctx context.Context, text string) ([]string, error) {
	content, err := j.complete(ctx, opTags, tagsPrompt, text)
	if err != nil {
		return nil, err
	}

	var reply tagsReply
	if err := decodeReply(content, &reply); err != nil {
		j.metrics.JudgeRequests.WithLabelValues(opTags, "invalid").Inc()
		return nil, fmt.Errorf("%w: suggest tags: %w", domain.ErrEvaluation, err)
	}
	j.metrics.JudgeRequests.WithLabelValues(opTags, "success").Inc()
	return reply.Tags, nil
}

// ScoreTrust asks the model for a trust score and bounds it to 0-100.
func (j *Judge) ScoreTrust(ctx context.Context, text string, tags []string) (uint64, error) {
	prompt := text
	if len(tags) > 0 {
		prompt = fmt.Sprintf("Tags: %s\n\n%s", strings.Join(tags, ", "), text)
	}

	content, err := j.complete(ctx, opTrust, trustPrompt, prompt)
	if err != nil {
		return 0, err
	}

	var reply trustReply
	if err := decodeReply(content, &reply); err != nil {
		j.metrics.JudgeRequests.WithLabelValues(opTrust, "invalid").Inc()
		return 0, fmt.Errorf("%w: score trust: %w", domain.ErrEvaluation, err)
	}
	if reply.Score == nil || math.IsNaN(*reply.Score) {
		j.metrics.JudgeRequests.WithLabelValues(opTrust, "invalid").Inc()
		return 0, fmt.Errorf("%w: score trust: reply has no score", domain.ErrEvaluation)
	}
	j.metrics.JudgeRequests.WithLabelValues(opTrust, "success").Inc()
	return domain.BoundScore(int64(math.Round(math.Max(-1, math.Min(*reply.Score, 1000))))), nil
}

func (j *Judge) complete(ctx context.Context, op, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "openai.Judge."+op,
		trace.WithAttributes(
			attribute.String("judge.op", op),
			attribute.String("judge.model", j.model),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := j.client.CreateChatCompletion(ctx, gogpt.ChatCompletionRequest{
		Model: j.model,
		Messages: []gogpt.ChatCompletionMessage{
			{Role: gogpt.ChatMessageRoleSystem, Content: system},
			{Role: gogpt.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &gogpt.ChatCompletionResponseFormat{Type: gogpt.ChatCompletionResponseFormatTypeJSONObject},
	})
	j.metrics.JudgeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no choices returned")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		j.metrics.JudgeRequests.WithLabelValues(op, "error").Inc()
		j.logger.Warn("judge completion failed", "op", op, "model", j.model, "error", err)
		return "", fmt.Errorf("%w: %s completion: %w", domain.ErrEvaluation, op, err)
	}

	span.SetAttributes(attribute.String("judge.finish_reason", string(resp.Choices[0].FinishReason)))
	return resp.Choices[0].Message.Content, nil
}

// decodeReply parses the first JSON object in content, tolerating code fences
// or prose around it.
func decodeReply(content string, v any) error {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in reply %q", truncate(content, 80))
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
