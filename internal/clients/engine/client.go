// Package engine talks to the design-engine service: embeddings for memory
// recall and the multimodal turn endpoint that produces the assistant reply
// plus tagged design outputs.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// GenerateTurn runs one design turn. When onDelta is non-nil the engine
	// streams the reply text and onDelta receives each chunk as it arrives;
	// the returned response is the complete turn either way.
	GenerateTurn(ctx context.Context, req TurnRequest, onDelta func(delta string)) (*TurnResponse, error)
}

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	ImageSize  string

	Timeout       time.Duration
	StreamTimeout time.Duration

	HTTPClient *http.Client
}

type client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	imageSize  string

	timeout       time.Duration
	streamTimeout time.Duration

	httpClient *http.Client
}

func New(opts Options) (Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(opts.APIKey),
		model:         strings.TrimSpace(opts.Model),
		embedModel:    strings.TrimSpace(opts.EmbedModel),
		imageSize:     strings.TrimSpace(opts.ImageSize),
		timeout:       timeout,
		streamTimeout: opts.StreamTimeout,
		httpClient:    hc,
	}, nil
}

func NewFromEnv() (Client, error) {
	timeoutSeconds := intFromEnv("KM_ENGINE_TIMEOUT_SECONDS", 60)
	streamTimeoutSeconds := intFromEnv("KM_ENGINE_STREAM_TIMEOUT_SECONDS", 0)

	return New(Options{
		BaseURL:       getEnv("KM_ENGINE_BASE_URL", "http://localhost:8080"),
		APIKey:        strings.TrimSpace(os.Getenv("KM_ENGINE_API_KEY")),
		Model:         strings.TrimSpace(os.Getenv("KM_ENGINE_MODEL")),
		EmbedModel:    strings.TrimSpace(os.Getenv("KM_ENGINE_EMBED_MODEL")),
		ImageSize:     getEnv("KM_ENGINE_IMAGE_SIZE", "1024x1024"),
		Timeout:       time.Duration(timeoutSeconds) * time.Second,
		StreamTimeout: time.Duration(streamTimeoutSeconds) * time.Second,
	})
}

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model  string   `json:"model"`
	Inputs []string `json:"inputs"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if strings.TrimSpace(c.embedModel) == "" {
		return nil, errors.New("missing KM_ENGINE_EMBED_MODEL")
	}
	req := embeddingsRequest{
		Model:  c.embedModel,
		Inputs: normalizeStrings(inputs),
	}
	var resp embeddingsResponse
	if err := c.doJSON(ctx, c.timeout, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("embeddings missing index=%d", i)
		}
	}
	return out, nil
}

// -------------------- Design turns --------------------

// TurnRequest carries the serialized session context and the user's new
// message. The engine decides from these whether the turn yields a new
// design and which supporting outputs to emit.
type TurnRequest struct {
	Context string `json:"context"`
	Prompt  string `json:"prompt"`
}

// OutputItem is one tagged output of a turn. Kind is the engine's label;
// unknown kinds reach the assembler, which decides what to do with them.
type OutputItem struct {
	Kind   string         `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Data   []byte         `json:"-"`
	Title  string         `json:"title,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// TurnResponse preserves the engine's output order.
type TurnResponse struct {
	Reply string
	Items []OutputItem
}

type turnRequestWire struct {
	Model     string `json:"model"`
	Context   string `json:"context"`
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

type outputItemWire struct {
	Kind   string         `json:"kind"`
	Text   string         `json:"text,omitempty"`
	DataB64 string        `json:"data_b64,omitempty"`
	Title  string         `json:"title,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

type turnResponseWire struct {
	Reply string           `json:"reply"`
	Items []outputItemWire `json:"items"`
}

func (c *client) GenerateTurn(ctx context.Context, treq TurnRequest, onDelta func(delta string)) (*TurnResponse, error) {
	if strings.TrimSpace(c.model) == "" {
		return nil, errors.New("missing KM_ENGINE_MODEL")
	}
	wire := turnRequestWire{
		Model:     c.model,
		Context:   treq.Context,
		Prompt:    treq.Prompt,
		ImageSize: c.imageSize,
		Stream:    onDelta != nil,
	}
	var out *TurnResponse
	var err error
	if onDelta != nil {
		out, err = c.streamTurn(ctx, wire, onDelta)
	} else {
		var resp turnResponseWire
		if err2 := c.doJSON(ctx, c.timeout, http.MethodPost, "/v1/design/turn", wire, &resp); err2 != nil {
			err = err2
		} else {
			out, err = decodeTurn(resp)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrGenerationFailed, err)
	}
	return out, nil
}

func (c *client) streamTurn(ctx context.Context, wire turnRequestWire, onDelta func(string)) (*TurnResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}

	ctx2 := ctx
	var cancel context.CancelFunc
	if c.streamTimeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, c.streamTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+"/v1/design/turn", &buf)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "application/json", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, parseHTTPError(resp.StatusCode, raw)
	}

	out := &TurnResponse{}
	var reply strings.Builder
	err = streamSSE(resp.Body, func(event string, data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}
		switch strings.TrimSpace(event) {
		case "text.delta":
			var obj struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &obj); err != nil {
				return nil
			}
			if obj.Delta == "" {
				return nil
			}
			reply.WriteString(obj.Delta)
			onDelta(obj.Delta)
			return nil
		case "output.item":
			var w outputItemWire
			if err := json.Unmarshal([]byte(data), &w); err != nil {
				return fmt.Errorf("bad output.item payload: %w", err)
			}
			item, err := decodeItem(w)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, item)
			return nil
		case "error":
			var obj struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(data), &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
				return fmt.Errorf("stream error: %s", strings.TrimSpace(obj.Message))
			}
			return fmt.Errorf("stream error: %s", strings.TrimSpace(data))
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	out.Reply = reply.String()
	return out, nil
}

func decodeTurn(w turnResponseWire) (*TurnResponse, error) {
	out := &TurnResponse{Reply: w.Reply, Items: make([]OutputItem, 0, len(w.Items))}
	for _, iw := range w.Items {
		item, err := decodeItem(iw)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func decodeItem(w outputItemWire) (OutputItem, error) {
	item := OutputItem{
		Kind:   strings.TrimSpace(w.Kind),
		Text:   w.Text,
		Title:  w.Title,
		Params: w.Params,
	}
	if strings.TrimSpace(w.DataB64) != "" {
		raw, err := base64.StdEncoding.DecodeString(w.DataB64)
		if err != nil {
			return OutputItem{}, fmt.Errorf("bad base64 in %q output: %w", w.Kind, err)
		}
		item.Data = raw
	}
	return item, nil
}

// -------------------- Transport --------------------

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("engine http %d: %s", e.StatusCode, e.Message)
}

func parseHTTPError(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var obj struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if strings.TrimSpace(obj.Error.Message) != "" {
			msg = strings.TrimSpace(obj.Error.Message)
		} else if strings.TrimSpace(obj.Message) != "" {
			msg = strings.TrimSpace(obj.Message)
		}
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

func (c *client) doJSON(ctx context.Context, timeout time.Duration, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return err
		}
		body = &buf
	}

	ctx2 := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req, "application/json", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *client) setHeaders(req *http.Request, contentType string, accept string) {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func normalizeStrings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
