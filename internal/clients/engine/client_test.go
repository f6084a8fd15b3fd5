package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "design-1",
		EmbedModel: "embed-1",
		ImageSize:  "1024x1024",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Answer out of order; the client must reassemble by index.
		fmt.Fprint(w, `{"data":[
			{"index":1,"embedding":[2.0]},
			{"index":0,"embedding":[1.0]}
		]}`)
	}))

	out, err := c.Embed(context.Background(), []string{"uno", "dos"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out) != 2 || out[0][0] != 1.0 || out[1][0] != 2.0 {
		t.Fatalf("embeddings out of order: %v", out)
	}
}

func TestEmbedMissingIndexFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1.0]}]}`)
	}))

	if _, err := c.Embed(context.Background(), []string{"uno", "dos"}); err == nil {
		t.Fatal("a hole in the embedding indices must fail")
	}
}

func TestGenerateTurnNonStreaming(t *testing.T) {
	imgB64 := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/design/turn" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req turnRequestWire
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream flag should be false when no delta callback is given")
		}
		if req.Model != "design-1" {
			t.Errorf("model = %q", req.Model)
		}
		fmt.Fprintf(w, `{
			"reply": "Aquí tienes tu cocina.",
			"items": [
				{"kind":"image","data_b64":%q,"params":{"shape":"l"}},
				{"kind":"specification","text":"especificación"}
			]
		}`, imgB64)
	}))

	resp, err := c.GenerateTurn(context.Background(), TurnRequest{Context: "{}", Prompt: "cocina"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Reply != "Aquí tienes tu cocina." {
		t.Fatalf("reply = %q", resp.Reply)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].Kind != "image" || string(resp.Items[0].Data) != "png-bytes" {
		t.Fatalf("image item not decoded: %+v", resp.Items[0])
	}
	if resp.Items[1].Text != "especificación" {
		t.Fatalf("second item = %+v", resp.Items[1])
	}
}

func TestGenerateTurnStreaming(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req turnRequestWire
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream flag should be set when a delta callback is given")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: text.delta\ndata: {\"delta\":\"Una \"}\n\n")
		fmt.Fprint(w, "event: text.delta\ndata: {\"delta\":\"cocina.\"}\n\n")
		fmt.Fprint(w, "event: output.item\ndata: {\"kind\":\"specification\",\"text\":\"spec\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))

	var deltas []string
	resp, err := c.GenerateTurn(context.Background(), TurnRequest{Prompt: "cocina"}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Join(deltas, "") != "Una cocina." {
		t.Fatalf("deltas = %v", deltas)
	}
	if resp.Reply != "Una cocina." {
		t.Fatalf("reply should accumulate the deltas, got %q", resp.Reply)
	}
	if len(resp.Items) != 1 || resp.Items[0].Kind != "specification" {
		t.Fatalf("items = %+v", resp.Items)
	}
}

func TestGenerateTurnStreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: text.delta\ndata: {\"delta\":\"Una \"}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"message\":\"modelo sobrecargado\"}\n\n")
	}))

	_, err := c.GenerateTurn(context.Background(), TurnRequest{Prompt: "x"}, func(string) {})
	if !errors.Is(err, pkgerrors.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "modelo sobrecargado") {
		t.Fatalf("error should carry the stream message: %v", err)
	}
}

func TestGenerateTurnHTTPErrorWrapsGenerationFailed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":{"message":"upstream down"}}`)
	}))

	_, err := c.GenerateTurn(context.Background(), TurnRequest{Prompt: "x"}, nil)
	if !errors.Is(err, pkgerrors.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("error should carry the upstream message: %v", err)
	}
}

func TestGenerateTurnBadBase64Fails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"reply":"x","items":[{"kind":"image","data_b64":"%%%not-base64"}]}`)
	}))

	_, err := c.GenerateTurn(context.Background(), TurnRequest{Prompt: "x"}, nil)
	if !errors.Is(err, pkgerrors.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestParseHTTPError(t *testing.T) {
	err := parseHTTPError(429, []byte(`{"message":"rate limited"}`))
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %T", err)
	}
	if he.StatusCode != 429 || he.Message != "rate limited" {
		t.Fatalf("parsed %+v", he)
	}

	err = parseHTTPError(500, []byte("plain text"))
	if !errors.As(err, &he) || he.Message != "plain text" {
		t.Fatalf("plain body should pass through, got %v", err)
	}
}
