package reply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"honeypot/internal/config"
	"honeypot/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

type fakeChatModel struct {
	got  []*schema.Message
	resp string
	err  error
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.resp}, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func conversation(n int) []models.Message {
	var out []models.Message
	for i := 0; i < n; i++ {
		out = append(out, models.Message{Sender: models.SenderScammer, Text: "verify KYC", Timestamp: t0.Add(time.Duration(2*i) * time.Minute)})
		if i < n-1 {
			out = append(out, models.Message{Sender: models.SenderAgent, Text: "which bank?", Timestamp: t0.Add(time.Duration(2*i+1) * time.Minute)})
		}
	}
	return out
}

func TestSystemPromptPushesForDetail(t *testing.T) {
	intel := models.NewIntelligence()
	assert.NotContains(t, SystemPrompt(conversation(1), intel), "Push for ONE concrete detail")
	assert.Contains(t, SystemPrompt(conversation(2), intel), "Push for ONE concrete detail")

	intel.Add(models.IntelUPI, "rahul@upi")
	assert.NotContains(t, SystemPrompt(conversation(3), intel), "Push for ONE concrete detail")
}

func TestChatModelGeneratorMapsRoles(t *testing.T) {
	fake := &fakeChatModel{resp: `  "Which app sir? My son set it up."  `}
	g := NewChatModelGenerator(fake, 0)

	got, err := g.Next(context.Background(), conversation(2), models.NewIntelligence())
	require.NoError(t, err)
	assert.Equal(t, "Which app sir? My son set it up.", got)

	require.Len(t, fake.got, 4)
	assert.Equal(t, schema.System, fake.got[0].Role)
	assert.Equal(t, schema.User, fake.got[1].Role)
	assert.Equal(t, schema.Assistant, fake.got[2].Role)
	assert.Equal(t, schema.User, fake.got[3].Role)

	// the platform's "user" side is the persona, not the scammer
	history := conversation(1)
	history = append(history, models.Message{Sender: models.SenderUser, Text: "which bank?", Timestamp: t0.Add(time.Minute)})
	_, err = g.Next(context.Background(), history, models.NewIntelligence())
	require.NoError(t, err)
	require.Len(t, fake.got, 3)
	assert.Equal(t, schema.Assistant, fake.got[2].Role)
}

func TestChatModelGeneratorErrors(t *testing.T) {
	g := NewChatModelGenerator(&fakeChatModel{err: errors.New("rate limited")}, 0)
	_, err := g.Next(context.Background(), conversation(1), models.NewIntelligence())
	assert.ErrorIs(t, err, ErrGeneration)

	g = NewChatModelGenerator(&fakeChatModel{resp: "   "}, 0)
	_, err = g.Next(context.Background(), conversation(1), models.NewIntelligence())
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestChatModelGeneratorTruncates(t *testing.T) {
	g := NewChatModelGenerator(&fakeChatModel{resp: strings.Repeat("क", 20)}, 5)
	got, err := g.Next(context.Background(), conversation(1), models.NewIntelligence())
	require.NoError(t, err)
	assert.Equal(t, "ककककक", got)
}

func TestOllamaGenerator(t *testing.T) {
	var req api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   "llama3",
			Message: api.Message{Role: "assistant", Content: "Server is down, send account number?"},
			Done:    true,
		})
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	g := NewOllamaGenerator(api.NewClient(base, srv.Client()), "llama3", 0)

	got, err := g.Next(context.Background(), conversation(1), models.NewIntelligence())
	require.NoError(t, err)
	assert.Equal(t, "Server is down, send account number?", got)
	assert.Equal(t, "llama3", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
}

func TestOllamaGeneratorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	g := NewOllamaGenerator(api.NewClient(base, srv.Client()), "missing", 0)
	_, err := g.Next(context.Background(), conversation(1), models.NewIntelligence())
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestCannedIsDeterministic(t *testing.T) {
	h := conversation(1)
	a, err := Canned{}.Next(context.Background(), h, models.NewIntelligence())
	require.NoError(t, err)
	b, _ := Canned{}.Next(context.Background(), h, models.NewIntelligence())
	assert.Equal(t, a, b)
	assert.Contains(t, stallingReplies, a)

	pushed, _ := Canned{}.Next(context.Background(), conversation(3), models.NewIntelligence())
	assert.Contains(t, detailReplies, pushed)
}

func TestFactory(t *testing.T) {
	cfg := config.Default()
	g, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Canned{}, g)

	cfg.Reply.Provider = "openai"
	g, err = New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Canned{}, g, "no api key falls back to scripted replies")

	cfg.Reply.Provider = "ollama"
	cfg.Providers["ollama"] = config.ProviderConfig{BaseURL: "http://127.0.0.1:11434", Model: "llama3"}
	g, err = New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaGenerator{}, g)

	cfg.Reply.Provider = "parrot"
	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
