// Package answer composes grounded LLM prompts from retrieved chunks
// and conversation history.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/lecternhq/lectern/internal/vector"
)

// ErrProvider indicates answer generation failed after retries.
// Callers surface a user-visible "try again" response, never the raw error.
var ErrProvider = errors.New("llm provider error")

// DefaultMaxPromptChars bounds the combined size of context, history
// and question sent to the model.
const DefaultMaxPromptChars = 24000

const systemPrompt = `You are a teaching assistant for a robotics course.
Answer the student's question using the provided course material excerpts.
Cite the excerpt titles you relied on. If the excerpts do not cover the
question, say so and answer from general knowledge, noting the distinction.`

const noContextNote = `No course material matched this question. Answer from
general knowledge and tell the student the answer is not grounded in the
course content.`

// Turn is one prior message in a conversation.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Composer builds bounded prompts and invokes the LLM.
type Composer struct {
	g              *genkit.Genkit
	modelName      string
	maxPromptChars int
	retryConfig    RetryConfig
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithMaxPromptChars bounds the combined prompt size.
func WithMaxPromptChars(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxPromptChars = n
		}
	}
}

// WithRetryConfig overrides the retry behavior.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Composer) {
		c.retryConfig = cfg
	}
}

// WithRateLimiter throttles LLM calls, including retries.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Composer) {
		c.limiter = limiter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Composer that generates with the named model.
func New(g *genkit.Genkit, modelName string, opts ...Option) *Composer {
	c := &Composer{
		g:              g,
		modelName:      modelName,
		maxPromptChars: DefaultMaxPromptChars,
		retryConfig:    DefaultRetryConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds a prompt from the question, retrieved chunks, and
// conversation history, then invokes the LLM. When the combined length
// would exceed the prompt budget, lowest-ranked chunks are dropped
// first, then the oldest history turns. An empty chunk list still
// produces an answer, with a note that no grounding context was found.
func (c *Composer) Compose(ctx context.Context, question string, chunks []vector.Result, history []Turn) (string, error) {
	chunks, history = c.fitBudget(question, chunks, history)

	messages := make([]*ai.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case "assistant":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(buildUserMessage(question, chunks))))

	resp, err := c.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g,
			ai.WithModelName(c.modelName),
			ai.WithSystem(systemPrompt),
			ai.WithMessages(messages...),
		)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	c.logger.Debug("composed answer",
		"chunks", len(chunks),
		"history_turns", len(history),
		"answer_len", len(resp.Text()))
	return resp.Text(), nil
}

// fitBudget trims chunks and history until the prompt fits.
// Chunks arrive ranked by descending similarity, so trimming from the
// end drops the weakest matches first. History is trimmed from the
// front, oldest turns first.
func (c *Composer) fitBudget(question string, chunks []vector.Result, history []Turn) ([]vector.Result, []Turn) {
	size := func() int {
		total := len(systemPrompt) + len(question)
		for _, ch := range chunks {
			total += len(ch.Content) + len(ch.Metadata["title"])
		}
		for _, turn := range history {
			total += len(turn.Content)
		}
		return total
	}

	for size() > c.maxPromptChars && len(chunks) > 0 {
		chunks = chunks[:len(chunks)-1]
	}
	for size() > c.maxPromptChars && len(history) > 0 {
		history = history[1:]
	}
	return chunks, history
}

// buildUserMessage renders the context block and the question.
func buildUserMessage(question string, chunks []vector.Result) string {
	var b strings.Builder

	if len(chunks) == 0 {
		b.WriteString(noContextNote)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Course material excerpts:\n\n")
		for i, ch := range chunks {
			title := ch.Metadata["title"]
			if title == "" {
				title = ch.DocumentID
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, title, ch.Content)
		}
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
