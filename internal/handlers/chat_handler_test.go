package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/quicknet-il/support-bot-be/internal/core/analytics"
	"github.com/quicknet-il/support-bot-be/internal/core/escalation"
	"github.com/quicknet-il/support-bot-be/internal/core/guardrail"
	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/reply"
	"github.com/quicknet-il/support-bot-be/internal/engine"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

func newTestApp(t *testing.T) (*fiber.App, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Templates.Create(ctx, &models.Template{
		Key:       intent.IntentGreeting,
		ContentAr: "أهلاً وسهلاً!",
		Active:    true,
	}))
	require.NoError(t, store.Policies.Create(ctx, &models.Policy{
		Type:     models.PolicyHumanRequest,
		Keywords: datatypes.NewJSONSlice([]string{"موظف"}),
		Active:   true,
	}))

	guard := guardrail.NewEngine(store.Policies)
	generator := reply.NewGenerator(store.Templates, nil, "كويك نت", time.Second)
	machine := escalation.NewMachine(store.Conversations, store.Handoffs, nil, 3)
	recorder := analytics.NewRecorder(store.Analytics)
	pipeline := engine.NewPipeline(store.Conversations, guard, generator, machine, recorder)

	app := fiber.New()
	chat := NewChatHandler(pipeline)
	app.Post("/chat", chat.SendMessage)
	return app, store
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestChatHandler_GreetingRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/chat", ChatRequest{SessionID: "sess-1", Message: "مرحبا"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "أهلاً وسهلاً!", out.Text)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.False(t, out.Escalate)
}

func TestChatHandler_MintsSessionID(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/chat", ChatRequest{Message: "مرحبا"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.SessionID)
}

func TestChatHandler_RejectsEmptyMessage(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := postJSON(t, app, "/chat", ChatRequest{SessionID: "sess-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatHandler_EscalationSurfacesInResponse(t *testing.T) {
	app, store := newTestApp(t)

	resp, body := postJSON(t, app, "/chat", ChatRequest{SessionID: "sess-1", Message: "بدي موظف"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Escalate)

	conv, _, err := store.Conversations.GetOrCreate(context.Background(), "sess-1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, conv.Status)
}
