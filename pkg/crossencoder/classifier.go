package crossencoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/recall/pkg/nlp"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

const classifierSystemPrompt = "You are an expert tasked with determining whether the passage is relevant to the query"

// Classifier makes a binary relevance judgment for one passage.
type Classifier interface {
	Classify(ctx context.Context, query, passage string) (bool, error)
}

// LLMClassifier asks a chat model whether a passage is relevant to a query.
// The model is expected to answer with a single "True" or "False" token.
type LLMClassifier struct {
	client nlp.Client
}

// NewLLMClassifier wraps client, which should be configured with
// temperature 0 and a one-token output limit.
func NewLLMClassifier(client nlp.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, query, passage string) (bool, error) {
	messages := []types.Message{
		nlp.NewSystemMessage(classifierSystemPrompt),
		nlp.NewUserMessage(fmt.Sprintf(`Respond with "True" if PASSAGE is relevant to QUERY and "False" otherwise.
<PASSAGE>
%s
</PASSAGE>
<QUERY>
%s
</QUERY>`, passage, query)),
	}

	response, err := c.client.Chat(ctx, messages)
	if err != nil {
		return false, fmt.Errorf("failed to get response: %w", err)
	}
	return parseJudgment(response.Content), nil
}

// Close releases the underlying client.
func (c *LLMClassifier) Close() error {
	return c.client.Close()
}

// parseJudgment reads the first word of a model answer. Anything other than
// an affirmative answer counts as not relevant.
func parseJudgment(content string) bool {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return false
	}
	word := strings.ToLower(strings.Trim(fields[0], `."'!:,`))
	switch word {
	case "true", "yes":
		return true
	default:
		return false
	}
}

// ClassifyAll judges every passage concurrently with at most maxConcurrency
// calls in flight (unbounded when non-positive). A passage whose call fails
// is reported as not relevant and the failure is logged.
func ClassifyAll(ctx context.Context, classifier Classifier, query string, passages []string, maxConcurrency int, logger *slog.Logger) []bool {
	if len(passages) == 0 {
		return []bool{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	verdicts, errs := utils.MapConcurrent(ctx, maxConcurrency, passages, func(ctx context.Context, passage string) (bool, error) {
		return classifier.Classify(ctx, query, passage)
	})

	for i, err := range errs {
		if err != nil {
			logger.Warn("relevance classification failed, treating passage as not relevant",
				"index", i,
				"error", err)
			verdicts[i] = false
		}
	}
	return verdicts
}
