package handler

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// systemPrompts frames each specialist's role for the chat completion call.
// Wording quality is not this layer's concern; the prompts only scope the
// model to the routed domain.
var systemPrompts = map[route.Kind]string{
	route.KindMarketing:      "You are a webshop marketing assistant. Answer questions about current promotions, coupons and the newsletter. Reply in the customer's language.",
	route.KindOrderStatus:    "You are a webshop order-status assistant. Answer questions about orders, shipping and returns. Reply in the customer's language.",
	route.KindRecommendation: "You are a webshop product recommendation assistant. Suggest products matching the customer's needs. Reply in the customer's language.",
	route.KindProductInfo:    "You are a webshop product information assistant. Answer questions about products, prices, stock and warranty. Reply in the customer's language.",
	route.KindGeneral:        "You are a webshop customer service assistant. Answer general questions politely. Reply in the customer's language.",
}

// OpenAIHandler serves one handler kind through the OpenAI chat
// completions API.
type OpenAIHandler struct {
	kind   route.Kind
	client *openai.Client
	model  string
}

// NewOpenAIHandler creates a handler for the kind using the given API key.
func NewOpenAIHandler(kind route.Kind, apiKey, model string) *OpenAIHandler {
	return &OpenAIHandler{kind: kind, client: openai.NewClient(apiKey), model: model}
}

// NewOpenAIHandlerWithBaseURL creates a handler pointed at a custom base URL
// (e.g. a mock server in e2e tests). baseURL is scheme+host without path.
func NewOpenAIHandlerWithBaseURL(kind route.Kind, apiKey, baseURL, model string) *OpenAIHandler {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	return &OpenAIHandler{kind: kind, client: openai.NewClientWithConfig(config), model: model}
}

// Kind implements Handler.
func (h *OpenAIHandler) Kind() route.Kind { return h.kind }

// Execute sends the sanitized message to the chat completions API with the
// kind's system prompt.
func (h *OpenAIHandler) Execute(ctx context.Context, message string, userContext map[string]interface{}) (*Result, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(
			attribute.String("gen_ai.system", "openai"),
			attribute.String("gen_ai.request.model", h.model),
			attribute.String("handler.kind", string(h.kind)),
		))
	defer span.End()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompts[h.kind]},
	}
	if prefs, ok := userContext["preferences"].(string); ok && prefs != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Customer preferences: " + prefs,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai api call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api call: no choices returned")
	}

	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
		attribute.String("gen_ai.response.finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return &Result{
		Text:       resp.Choices[0].Message.Content,
		Confidence: 0, // no native confidence; invoker substitutes the default
		Metadata: map[string]interface{}{
			"model":         resp.Model,
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}

// Healthy reports whether the client can list models, the cheapest call
// that proves the API is reachable and the key is valid.
func (h *OpenAIHandler) Healthy(ctx context.Context) error {
	_, err := h.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openai health probe: %w", err)
	}
	return nil
}
