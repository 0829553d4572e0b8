package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// classificationSchema is what a usable model answer must look like.
const classificationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["is_relevant", "confidence"],
  "properties": {
    "is_relevant": {"type": "boolean"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "suggested_supplier_name": {"type": "string"},
    "suggested_categories": {"type": "array", "items": {"type": "string"}},
    "primary_category": {"type": "string"},
    "reasoning": {"type": "string"}
  }
}`

const systemPrompt = `You classify email contacts for an event planner's CRM.
Given a contact profile, decide whether the contact is an event vendor
(venue, caterer, florist, photographer, band, rental company and so on)
as opposed to a client, a colleague, a newsletter or an automated sender.

Respond with a single JSON object and nothing else:
{
  "is_relevant": bool,
  "confidence": number between 0 and 1,
  "suggested_supplier_name": "cleaned up business name",
  "suggested_categories": ["pick from: %s"],
  "primary_category": "the single best category",
  "reasoning": "one short sentence"
}`

// OpenAIClassifier asks a chat completion model for the verdict and
// validates the answer against the embedded schema.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier creates a classifier. Model defaults to
// gpt-4o-mini and timeout to 30s when zero values are passed.
func NewOpenAIClassifier(apiKey, model string, timeout time.Duration, logger *log.Logger) *OpenAIClassifier {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	return &OpenAIClassifier{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify builds the contact profile prompt, calls the model and
// parses the schema-checked verdict. Every failure comes back as a
// scorer error so batch callers can keep going.
func (c *OpenAIClassifier) Classify(ctx context.Context, candidate *domain.SupplierCandidate, scorerCtx Context) (*Classification, error) {
	profile := map[string]interface{}{
		"email":         candidate.Email,
		"domain":        candidate.Domain,
		"display_name":  candidate.DisplayName,
		"message_count": candidate.MessageCount,
	}
	if scorerCtx.EventContext != "" {
		profile["event_context"] = scorerCtx.EventContext
	}
	if len(scorerCtx.SampleSubjects) > 0 {
		profile["sample_subjects"] = scorerCtx.SampleSubjects
	}
	if scorerCtx.SiteSummary != "" {
		profile["website_summary"] = scorerCtx.SiteSummary
	}

	payload, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, domain.NewScorerError("encode contact profile", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   400,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPrompt, strings.Join(KnownCategories, ", ")),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: string(payload),
			},
		},
	})
	if err != nil {
		c.logger.Printf("❌ Classifier call failed for %s: %v (duration: %v)", candidate.Email, err, time.Since(start))
		return nil, domain.NewScorerError("classifier call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewScorerError("classifier returned no choices", nil)
	}

	verdict, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Printf("❌ Classifier answer rejected for %s: %v", candidate.Email, err)
		return nil, err
	}

	c.logger.Printf("🤖 Classified %s: relevant=%t confidence=%.2f (%d tokens, %v)",
		candidate.Email, verdict.IsRelevant, verdict.Confidence, resp.Usage.TotalTokens, time.Since(start))

	return verdict, nil
}

// parseClassification strips markdown fences, schema-checks the JSON
// and unmarshals it.
func parseClassification(raw string) (*Classification, error) {
	cleaned := cleanJSONBlock(raw)
	if cleaned == "" {
		return nil, domain.NewScorerError("classifier returned an empty answer", nil)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(classificationSchema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil {
		return nil, domain.NewScorerError("classifier answer is not valid JSON", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, domain.NewScorerError(
			fmt.Sprintf("classifier answer failed schema check: %s", strings.Join(details, "; ")), nil)
	}

	var verdict Classification
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, domain.NewScorerError("decode classifier answer", err)
	}

	return &verdict, nil
}

// cleanJSONBlock removes markdown code block wrappers models like to
// add even when told not to.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}
