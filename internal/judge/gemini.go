package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/verdict"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultJudgeRPM    = 15
	defaultJudgeTimout = 60 * time.Second
)

type GeminiConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	RPM          int
	Timeout      time.Duration
}

// contentGenerator is satisfied by *genai.GenerativeModel
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiJudge struct {
	client    *genai.Client
	generator contentGenerator
	limiter   *rate.Limiter
	timeout   time.Duration
	log       interfaces.ILogger
}

func NewGeminiJudge(ctx context.Context, cfg GeminiConfig, log interfaces.ILogger) (*GeminiJudge, error) {
	if cfg.APIKey == "" {
		return nil, lib.WrapError(ErrJudgeUnavailable, errors.New("no api key configured"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, lib.WrapError(ErrJudgeUnavailable, err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(cfg.SystemPrompt)}}
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	j := newGeminiJudge(model, cfg, log)
	j.client = client

	log.Infof("gemini judge initialized, model %s, %d requests per minute", cfg.Model, cfg.RPM)
	return j, nil
}

func newGeminiJudge(gen contentGenerator, cfg GeminiConfig, log interfaces.ILogger) *GeminiJudge {
	if cfg.RPM <= 0 {
		cfg.RPM = DefaultJudgeRPM
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultJudgeTimout
	}
	return &GeminiJudge{
		generator: gen,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1),
		timeout:   cfg.Timeout,
		log:       log,
	}
}

func (g *GeminiJudge) Name() string {
	return "gemini"
}

func (g *GeminiJudge) Evaluate(ctx context.Context, claim *verdict.Claim) Result {
	if err := g.limiter.Wait(ctx); err != nil {
		return Unavailable(fmt.Sprintf("rate limiter: %s", err))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.log.Debugf("sending delivery %s to gemini", claim.TransactionID)

	resp, err := g.generator.GenerateContent(ctx, genai.Text(FormatRequest(claim)))
	if err != nil {
		if IsQuotaError(err) {
			g.log.Warnf("gemini quota exceeded for %s: %s", claim.TransactionID, err)
			return RateLimited(err.Error())
		}
		g.log.Warnf("gemini request failed for %s: %s", claim.TransactionID, err)
		return Unavailable(err.Error())
	}

	text := responseText(resp)
	if text == "" {
		return Malformed("empty response")
	}

	v, err := ParseVerdict(text)
	if err != nil {
		g.log.Warnf("failed to parse gemini response: %s, raw: %s", err, lib.Truncate(text, 500, "..."))
		return Malformed(err.Error())
	}
	v.TransactionID = claim.TransactionID

	g.log.Infof("gemini verdict for %s: %s (%d%%)", claim.TransactionID, v.Outcome, v.Confidence)
	return Ok(v)
}

func (g *GeminiJudge) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// IsQuotaError reports whether err is an API quota or rate limit rejection
func IsQuotaError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429")
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		// first candidate with content wins
		if sb.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}
