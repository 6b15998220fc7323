package wordgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/pkg/metrics"
)

// WordCount is the number of similarity words one completion produces,
// ordered most to least similar.
const WordCount = 36

// Completer is the text-completion collaborator contract. The production
// implementation calls OpenAI; tests substitute fakes.
type Completer interface {
	GenerateWordList(ctx context.Context, text string) ([]string, error)
}

// OpenAI calls the chat-completions endpoint with a fixed JSON-shape prompt
// (keys "0".."35") and parses the object back into an ordered word list.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

const promptTemplate = `Strictly generate a JSON object with keys 0-35 containing words similar to this scene: %q. Ensure 0 is most similar. Format exactly like:
{
  "0": "most similar word",
  "1": "second similar word",
  ...
  "35": "least similar word"
}`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateWordList performs one completion call. Non-2xx responses and
// unparseable bodies are Upstream errors; the call is never retried.
func (o *OpenAI) GenerateWordList(ctx context.Context, text string) ([]string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(promptTemplate, text)}},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, &apperr.Upstream{Service: "openai", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &apperr.Upstream{Service: "openai", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("openai", "error").Inc()
		return nil, &apperr.Upstream{Service: "openai", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		metrics.UpstreamCalls.WithLabelValues("openai", "error").Inc()
		return nil, &apperr.Upstream{Service: "openai", Err: fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, string(b))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		metrics.UpstreamCalls.WithLabelValues("openai", "error").Inc()
		return nil, &apperr.Upstream{Service: "openai", Err: err}
	}
	if len(cr.Choices) == 0 {
		metrics.UpstreamCalls.WithLabelValues("openai", "error").Inc()
		return nil, &apperr.Upstream{Service: "openai", Err: fmt.Errorf("no choices in response")}
	}

	words, err := parseWordObject(cr.Choices[0].Message.Content)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("openai", "error").Inc()
		return nil, &apperr.Upstream{Service: "openai", Err: err}
	}
	metrics.UpstreamCalls.WithLabelValues("openai", "ok").Inc()
	return words, nil
}

// parseWordObject turns the {"0": ..., "35": ...} object into a slice
// ordered by its numeric keys.
func parseWordObject(content string) ([]string, error) {
	var obj map[string]string
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("malformed word object: %w", err)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("empty word object")
	}
	keys := make([]int, 0, len(obj))
	byIndex := make(map[int]string, len(obj))
	for k, v := range obj {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-numeric word key %q", k)
		}
		keys = append(keys, i)
		byIndex[i] = v
	}
	sort.Ints(keys)
	words := make([]string, 0, len(keys))
	for _, i := range keys {
		words = append(words, byIndex[i])
	}
	return words, nil
}
