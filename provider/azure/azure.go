package azure_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/chatbot"
)

// Client talks to an Azure OpenAI resource that hosts both the embeddings
// and the chat completion deployments. One attempt per call, no retries;
// callers treat a failure as fatal for that request.
type Client struct {
	endpoint             *url.URL
	apiKey               string
	apiVersion           string
	chatDeployment       string
	embeddingsDeployment string
	temperature          float64
	maxTokens            int
	httpClient           *http.Client
}

// NewClient validates the deployment configuration up front so a missing
// key or endpoint fails at startup, not mid-request.
func NewClient(cfg config.AzureOpenAIConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse azure endpoint: %w", err)
	}
	return &Client{
		endpoint:             endpoint,
		apiKey:               cfg.APIKey,
		apiVersion:           cfg.APIVersion,
		chatDeployment:       cfg.ChatDeployment,
		embeddingsDeployment: cfg.EmbeddingsDeployment,
		temperature:          cfg.Temperature,
		maxTokens:            cfg.MaxTokens,
		httpClient:           &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) deploymentURL(deployment, operation string) string {
	u := *c.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/openai/deployments/" + deployment + "/" + operation
	q := u.Query()
	q.Set("api-version", c.apiVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// Embed generates an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]interface{}{"input": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deploymentURL(c.embeddingsDeployment, "embeddings"), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &chatbot.UpstreamError{Service: "azure embeddings", Status: resp.StatusCode, Message: remoteMessage(raw)}
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, &chatbot.UpstreamError{Service: "azure embeddings", Message: "no embedding in response"}
	}
	return out.Data[0].Embedding, nil
}

// Complete sends the assembled conversation to the chat deployment and
// parses the first choice. A content_filter finish reason surfaces as
// chatbot.ErrContentFiltered alongside the model and usage that were
// reported, so the caller can log the turn correctly.
func (c *Client) Complete(ctx context.Context, messages []chatbot.Message) (chatbot.Completion, error) {
	payload := struct {
		Messages    []chatbot.Message `json:"messages"`
		MaxTokens   int               `json:"max_tokens,omitempty"`
		Temperature float64           `json:"temperature"`
	}{Messages: messages, MaxTokens: c.maxTokens, Temperature: c.temperature}

	body, err := json.Marshal(payload)
	if err != nil {
		return chatbot.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deploymentURL(c.chatDeployment, "chat/completions"), bytes.NewBuffer(body))
	if err != nil {
		return chatbot.Completion{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatbot.Completion{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatbot.Completion{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return chatbot.Completion{}, &chatbot.UpstreamError{Service: "azure chat completions", Status: resp.StatusCode, Message: remoteMessage(raw)}
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatbot.Completion{}, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return chatbot.Completion{}, &chatbot.UpstreamError{Service: "azure chat completions", Message: "no choices in response"}
	}

	completion := chatbot.Completion{
		Reply: out.Choices[0].Message.Content,
		Model: out.Model,
		Usage: chatbot.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}
	if out.Choices[0].FinishReason == "content_filter" {
		return completion, chatbot.ErrContentFiltered
	}
	return completion, nil
}

// remoteMessage pulls a safe human-readable message out of an upstream error
// body, falling back to the raw text.
func remoteMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
