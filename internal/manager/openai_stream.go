package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
	Stream      bool     `json:"stream"`
	// Not standard OpenAI; llama.cpp accepts it and other servers ignore it.
	RepeatPenalty float32 `json:"repeat_penalty,omitempty"`
}

func newCompletionRequest(model, prompt string, p InferParams) openAICompletionRequest {
	return openAICompletionRequest{
		Model:         model,
		Prompt:        prompt,
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		Stream:        true,
		RepeatPenalty: p.RepeatPenalty,
	}
}

// openAIStreamChoice is a minimal subset of an OpenAI streaming chunk. Plain
// completions carry "text"; chat-style servers carry "delta.content".
type openAIStreamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string               `json:"object"`
	Choices []openAIStreamChoice `json:"choices"`
}

// streamCompletion posts req to baseURL+/v1/completions and forwards each
// streamed fragment to onToken. Lines may be SSE ("data: {...}") or raw JSON.
func streamCompletion(ctx context.Context, cli *http.Client, baseURL, apiKey string, req openAICompletionRequest, onToken func(string) error, log zerolog.Logger) (FinalResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return FinalResult{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return FinalResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := cli.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return FinalResult{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	r := bufio.NewReader(resp.Body)
	var final FinalResult
	var content strings.Builder
	emit := func(frag string) error {
		if frag == "" {
			return nil
		}
		content.WriteString(frag)
		return onToken(frag)
	}
	for {
		line, rerr := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" {
			data := l
			if strings.HasPrefix(strings.ToLower(l), "data:") {
				data = strings.TrimSpace(l[len("data:"):])
			}
			if data == "[DONE]" {
				break
			}
			var msg openAIStreamResponse
			if err := json.Unmarshal([]byte(data), &msg); err == nil && len(msg.Choices) > 0 {
				c := msg.Choices[0]
				frag := c.Text
				if frag == "" {
					frag = c.Delta.Content
				}
				if err := emit(frag); err != nil {
					return final, err
				}
				if c.FinishReason != "" {
					final.FinishReason = c.FinishReason
				}
			} else {
				// llama.cpp native streaming: {"content": "...", "stop": bool}
				var native struct {
					Content string `json:"content"`
					Stop    bool   `json:"stop"`
				}
				if err := json.Unmarshal([]byte(data), &native); err == nil && native.Content != "" {
					if err := emit(native.Content); err != nil {
						return final, err
					}
				} else {
					log.Debug().Str("event", "unknown_stream_line").Str("line", l).Msg("ignored stream line")
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, rerr
		}
	}
	final.Content = content.String()
	return final, nil
}

// healthy reports whether the server at baseURL answers /v1/models with 2xx.
func healthy(ctx context.Context, cli *http.Client, baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := cli.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
