package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"
)

const maxBodyBytes = 1 << 20

// HTTPClient talks to a remote persona service over JSON/HTTP.
// Each request is attempted once; there are no retries.
type HTTPClient struct {
	baseURL        string
	http           *http.Client
	greetingSchema *jsonschema.Schema
	respondSchema  *jsonschema.Schema
}

// NewHTTPClient 创建远端人设服务客户端，timeout 为单次请求的上限。
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	compiler := jsonschema.NewCompiler()

	greeting, err := compiler.Compile([]byte(greetingSchema))
	if err != nil {
		return nil, fmt.Errorf("compile greeting schema: %w", err)
	}
	respond, err := compiler.Compile([]byte(respondSchema))
	if err != nil {
		return nil, fmt.Errorf("compile respond schema: %w", err)
	}

	return &HTTPClient{
		baseURL:        baseURL,
		http:           &http.Client{Timeout: timeout},
		greetingSchema: greeting,
		respondSchema:  respond,
	}, nil
}

// Greeting requests a fresh random scenario.
func (c *HTTPClient) Greeting(ctx context.Context) (Greeting, error) {
	var resp GreetingResponse
	if err := c.post(ctx, "/api/scammer/greeting", struct{}{}, c.greetingSchema, &resp); err != nil {
		return Greeting{}, err
	}
	return greetingFromWire(resp)
}

// Reply requests the persona's answer to the latest utterance.
func (c *HTTPClient) Reply(ctx context.Context, req ReplyRequest) (Reply, error) {
	body := RespondRequest{
		Message:             req.Utterance,
		ConversationHistory: req.History,
		ScenarioID:          req.ScenarioID,
		MessageCount:        req.MessageCount,
	}
	if body.ConversationHistory == nil {
		body.ConversationHistory = []HistoryEntry{}
	}

	var resp RespondResponse
	if err := c.post(ctx, "/api/scammer/respond", body, c.respondSchema, &resp); err != nil {
		return Reply{}, err
	}
	return replyFromWire(resp, req.MessageCount)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, schema *jsonschema.Schema, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	slog.Debug("[persona] request finished", "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrTransport, path, resp.StatusCode)
	}

	if result := schema.ValidateJSON(body); !result.IsValid() {
		return fmt.Errorf("%w: %v", ErrMalformed, result.Errors)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
