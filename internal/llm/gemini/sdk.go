package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

// SDKClient implements llm.ItemExtractor with the generative-ai-go SDK.
// Retry and validation follow Client; every SDK error counts as transient.
type SDKClient struct {
	cfg     Config
	client  *genai.Client
	model   *genai.GenerativeModel
	prompt  *llm.PromptTemplate
	decoder *llm.Decoder
	log     *slog.Logger
}

func NewSDKClient(ctx context.Context, cfg Config, prompt *llm.PromptTemplate, logger *slog.Logger) (*SDKClient, error) {
	cfg = cfg.withDefaults()
	logger = defaultLogger(logger)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if prompt == nil {
		prompt = llm.DefaultPromptTemplate()
	}
	dec, err := llm.NewDecoder(cfg.Lenient, logger)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema()

	return &SDKClient{
		cfg:     cfg,
		client:  client,
		model:   model,
		prompt:  prompt,
		decoder: dec,
		log:     logger,
	}, nil
}

func (c *SDKClient) Close() error {
	return c.client.Close()
}

// ExtractItems implements llm.ItemExtractor.
func (c *SDKClient) ExtractItems(ctx context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
	rid := uuid.New().String()
	start := time.Now()

	instruction, err := c.prompt.Render(req.AllowedCategories, req.FallbackCategory)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"image", req.ImageName,
		"model", c.cfg.Model,
		"backend", "sdk",
	)

	items, err := withRetry(ctx, c.cfg, c.log, req.ImageName, func(ctx context.Context, attempt int) ([]llm.MenuItem, error) {
		resp, err := c.model.GenerateContent(ctx,
			genai.Text(instruction),
			genai.Blob{MIMEType: req.MIMEType, Data: data},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Candidates) == 0 {
			return nil, fmt.Errorf("no candidates returned from Gemini")
		}
		cand := resp.Candidates[0]
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			return nil, fmt.Errorf("empty content returned from Gemini")
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if txt, ok := p.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		return c.decoder.Decode(sb.String(), req.AllowedCategories, req.FallbackCategory)
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

func responseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(llm.ItemFields))
	for _, f := range llm.ItemFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   []string{"Name", "Value", "Category", "Description"},
		},
	}
}
