package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/smallbiznis/covercheck/internal/config"
	"github.com/smallbiznis/covercheck/internal/retry"
	"go.uber.org/zap"
)

const systemPrompt = `You read ACORD 25 certificates of liability insurance and similar COI documents.
Reply with one JSON object and nothing else:
{
  "success": true,
  "insured_name": "named insured as printed",
  "additional_insured_entities": ["every party named as additional insured"],
  "coverages": [
    {
      "coverage_type": "general_liability | automobile_liability | workers_compensation | employers_liability | umbrella_excess_liability | professional_liability_eo | property_inland_marine | pollution_liability | liquor_liability | cyber_liability",
      "limit_type": "per_occurrence | aggregate | combined_single_limit | statutory | per_person | per_accident | null",
      "limit_amount": 1000000,
      "carrier_name": "",
      "policy_number": "",
      "effective_date": "YYYY-MM-DD",
      "expiration_date": "YYYY-MM-DD",
      "additional_insured": true,
      "additional_insured_entities": [],
      "waiver_of_subrogation": false,
      "confidence": "high | medium | low"
    }
  ],
  "user_message": ""
}
Emit one coverage row per limit printed on the certificate. Use null for values that are not printed.
If the document is not a certificate of insurance or cannot be read, reply with
{"success": false, "user_message": "<one short sentence for the uploader>"}.`

const userPrompt = "Extract the coverages from this certificate."

// AnthropicGateway extracts coverages with a Claude model reading the PDF
// directly.
type AnthropicGateway struct {
	client    *anthropic.Client
	log       *zap.Logger
	model     string
	maxTokens int
	retry     retry.Config
}

func NewAnthropicGateway(cfg config.ExtractionConfig, log *zap.Logger, opts ...anthropic.ClientOption) (*AnthropicGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("extraction api key is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGateway{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		log:       log.Named("extraction.anthropic"),
		model:     cfg.Model,
		maxTokens: maxTokens,
		retry:     retry.RemoteConfig(cfg.MaxRetries),
	}, nil
}

// Extract sends the document and parses the reply. Retryable failures are
// retried with backoff until ctx ends.
func (g *AnthropicGateway) Extract(ctx context.Context, doc Document) (*RawResult, error) {
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					{
						Type: anthropic.MessagesContentTypeDocument,
						Source: &anthropic.MessageContentSource{
							Type:      anthropic.MessagesContentSourceTypeBase64,
							MediaType: "application/pdf",
							Data:      base64.StdEncoding.EncodeToString(doc.Data),
						},
					},
					anthropic.NewTextMessageContent(userPrompt),
				},
			},
		},
	}

	var text string
	attempt := 0
	err := retry.Do(ctx, g.retry, IsRetryable, func() error {
		attempt++
		resp, err := g.client.CreateMessages(ctx, req)
		if err != nil {
			classified := Classify(err)
			g.log.Warn("extraction call failed",
				zap.Int("attempt", attempt),
				zap.String("reason", classified.Reason),
				zap.Bool("retryable", classified.Retryable),
			)
			return classified
		}
		text = replyText(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := DecodeRawResult(text)
	if err != nil {
		return nil, &GatewayError{Reason: ReasonMalformed, Cause: err}
	}
	return raw, nil
}

func replyText(resp anthropic.MessagesResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}
