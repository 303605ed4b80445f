package ai

import (
	"context"
	"fmt"
	"strings"

	"time"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// FallbackAnswer is the phrase the model is instructed to emit when the
// retrieved excerpts do not contain the answer.
const FallbackAnswer = "I don't see information about that in the document."

const answerPromptTemplate = `Answer the following question based only on the provided document excerpts:
%s

Question: %s

If the answer is not contained in the document excerpts, say "%s"
Keep your answer concise and focused on the document content.`

// GeminiClient wraps the chat-completion API behind a circuit breaker and a
// request rate limiter.
type GeminiClient struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	breaker         *gobreaker.CircuitBreaker
	rateLimiter     *rate.Limiter
}

func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GoogleAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// Configured RPM with some buffer below the provider quota
	rpm := cfg.GeminiRPM
	if rpm <= 0 {
		rpm = 10
	}
	rateLimiter := rate.NewLimiter(rate.Limit(rpm*0.9/60.0), 2)

	return &GeminiClient{
		client:          client,
		model:           cfg.ChatModel,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		breaker:         breaker,
		rateLimiter:     rateLimiter,
	}, nil
}

// GenerateAnswer prompts the model with the retrieved excerpts verbatim and
// returns the generated answer text.
func (gc *GeminiClient) GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_answer")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.context_chunks", len(contextChunks)),
		attribute.String("gemini.model", gc.model),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(gc.temperature)
		if gc.maxOutputTokens > 0 {
			model.SetMaxOutputTokens(gc.maxOutputTokens)
		}

		prompt := BuildAnswerPrompt(question, contextChunks)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return "", err
	}

	answer := extractText(result.(*genai.GenerateContentResponse))
	if answer == "" {
		return "", fmt.Errorf("no answer returned by model")
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return answer, nil
}

// BuildAnswerPrompt embeds the excerpts verbatim plus the question, with the
// instruction to answer only from the provided context.
func BuildAnswerPrompt(question string, contextChunks []string) string {
	return fmt.Sprintf(answerPromptTemplate, strings.Join(contextChunks, "\n\n"), question, FallbackAnswer)
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
