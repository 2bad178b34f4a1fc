// internal/request/generator.go
package request

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/llmutil"
)

// letterTemplate is the fixed public records request letter. Only the
// context paragraph, the bullet list, and the signature block vary.
const letterTemplate = `To Whom It May Concern:

This is a public records request made to your agency seeking records related to the conduct of government in your jurisdiction.

%s

Please provide any spreadsheets, databases, or logs showing as much of the following information as is maintained in that format regarding:
%s

If your system contains data elements not listed above, please include them in the response, provided they are releasable under the law. On the other hand, we recognize some of the information we are asking for may not be tracked by your system. If that is the case, we are willing to accept as many of the data elements as your agency maintains. If some records are more readily available, we are happy to receive partial information as soon as possible while the remaining request is processed.

In addition to the data elements listed, we request documentation necessary to understand and interpret the data, including but not limited to record layouts, data dictionaries, code sheets, lookup tables, etc.

Our preference is to receive structured data provided in a machine-readable text file, such as delimited or fixed-width formats. We can also handle a variety of other data formats including SQL databases, Excel workbooks and MS Access. If there are additional formats your agency would prefer to provide, please let us know.

We are seeking this information on a matter of public interest concerning the conduct of government. As such, we ask for a waiver of all fees, if allowed under state law. If fees are necessary to reimburse the agency for actual costs, we agree to pay up to $100. If costs exceed that amount, please let us know before fulfilling the request.

Please send clarifications and questions via electronic communication at any time. Thank you very much for your time and attention to this request.

Sincerely,
%s`

// Generator turns a user topic into candidate records requests and renders
// the chosen one into the full letter.
type Generator struct {
	llm    schemas.LLMClient
	logger *zap.Logger

	// How many candidate options to ask for, capped at 3.
	optionCount int
}

// NewGenerator creates a request generator.
func NewGenerator(llm schemas.LLMClient, optionCount int, logger *zap.Logger) *Generator {
	if optionCount < 1 || optionCount > 3 {
		optionCount = 3
	}
	return &Generator{
		llm:         llm,
		logger:      logger.Named("request_generator"),
		optionCount: optionCount,
	}
}

// GenerateOptions produces 1-3 request approaches for the topic.
func (g *Generator) GenerateOptions(ctx context.Context, topic string) (schemas.RequestOptions, error) {
	if strings.TrimSpace(topic) == "" {
		return schemas.RequestOptions{}, fmt.Errorf("request topic must not be empty")
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(optionGenerationSystemPrompt, topic, g.optionCount),
		UserPrompt:   fmt.Sprintf("Generate public records request options for: %s", topic),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.4,
			ForceJSONFormat: true,
		},
	}

	raw, err := g.llm.Generate(ctx, req)
	if err != nil {
		return schemas.RequestOptions{}, fmt.Errorf("option generation request failed: %w", err)
	}

	options, err := llmutil.ParseJSONResponse[schemas.RequestOptions](raw)
	if err != nil {
		return schemas.RequestOptions{}, fmt.Errorf("failed to parse request options: %w", err)
	}
	if len(options.Options) == 0 {
		return schemas.RequestOptions{}, fmt.Errorf("generator returned no request options")
	}
	if len(options.Options) > 3 {
		options.Options = options.Options[:3]
	}
	options.Topic = topic

	g.logger.Info("Request options generated.",
		zap.String("topic", topic), zap.Int("count", len(options.Options)))
	return *options, nil
}

// RenderLetter builds the full request text for the selected option.
func RenderLetter(option schemas.RequestOption, contact schemas.ContactInfo) string {
	bullets := make([]string, 0, len(option.BulletPoints))
	for _, p := range option.BulletPoints {
		bullets = append(bullets, "* "+p)
	}

	signature := []string{contact.Name}
	if contact.Email != "" {
		signature = append(signature, contact.Email)
	}
	if contact.Phone != "" {
		signature = append(signature, contact.Phone)
	}

	return fmt.Sprintf(letterTemplate,
		option.Context,
		strings.Join(bullets, "\n"),
		strings.Join(signature, "\n"))
}
