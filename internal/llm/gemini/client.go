package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

// Client implements llm.ItemExtractor over the generateContent REST endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	prompt  *llm.PromptTemplate
	decoder *llm.Decoder
	log     *slog.Logger
}

func NewClient(cfg Config, prompt *llm.PromptTemplate, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	logger = defaultLogger(logger)
	if prompt == nil {
		prompt = llm.DefaultPromptTemplate()
	}
	dec, err := llm.NewDecoder(cfg.Lenient, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:     cfg,
		http:    newHTTPClient(cfg),
		prompt:  prompt,
		decoder: dec,
		log:     logger,
	}, nil
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// ExtractItems implements llm.ItemExtractor.
func (c *Client) ExtractItems(ctx context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
	rid := uuid.New().String()
	start := time.Now()

	instruction, err := c.prompt.Render(req.AllowedCategories, req.FallbackCategory)
	if err != nil {
		return nil, err
	}

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: instruction},
				{InlineData: &inlineData{MIMEType: req.MIMEType, Data: req.ImageBase64}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   llm.BuildResponseSchema(),
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"image", req.ImageName,
		"model", c.cfg.Model,
		"mime", req.MIMEType,
		"allowed_categories", len(req.AllowedCategories),
	)

	items, err := withRetry(ctx, c.cfg, c.log, req.ImageName, func(ctx context.Context, attempt int) ([]llm.MenuItem, error) {
		raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log.With("req_id", rid, "attempt", attempt+1))
		if err != nil {
			return nil, err
		}
		text, err := candidateText(raw)
		if err != nil {
			return nil, err
		}
		return c.decoder.Decode(text, req.AllowedCategories, req.FallbackCategory)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"image", req.ImageName,
		"items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return items, nil
}

// candidateText returns the concatenated text parts of the first candidate.
func candidateText(raw []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("no candidates in gemini response: blocked (%s)", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in gemini response")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("empty content in gemini response (finish=%s)", resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}
