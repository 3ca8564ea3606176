package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walletchat/pkg/assistant"
	"walletchat/pkg/conversation"
	"walletchat/pkg/models"
	"walletchat/pkg/wallet"
	"walletchat/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const testAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

type fakeCompletions struct {
	reply string
}

func (f fakeCompletions) RequestCompletion(ctx context.Context, userMessage, walletAddress string) (string, error) {
	return f.reply, nil
}

type fakePortfolio struct{}

func (fakePortfolio) GetBalance(ctx context.Context, address string) (models.PortfolioSummary, error) {
	return models.PortfolioSummary{
		TotalValueUSD:     "1234.56",
		TotalValue:        1234.56,
		ChainDistribution: []models.ChainValue{{Chain: "ethereum", ValueUSD: 1234.56}},
		ChangeSummary:     "No recent changes.",
	}, nil
}

func (fakePortfolio) GetTransactions(ctx context.Context, address string) *models.TransactionList {
	return nil
}

func newTestServer(t *testing.T, provider wallet.Provider, reply string) (*Server, *watcher.Watcher) {
	t.Helper()
	history := watcher.NewWatcher(10)
	session := wallet.NewSession(provider, discard)
	a := assistant.New(session, conversation.NewStore(), fakeCompletions{reply: reply}, fakePortfolio{}, assistant.Options{
		Logger:  discard,
		History: history,
	})
	return NewServer(a, history, discard), history
}

func staticProvider(t *testing.T) wallet.Provider {
	t.Helper()
	p, err := wallet.NewStaticProvider(testAddress)
	require.NoError(t, err)
	return p
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, nil, "")

	rr := do(s, "GET", "/api/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
	assert.False(t, resp.Busy)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, 0, resp.Turns)
}

func TestHandleConnect(t *testing.T) {
	t.Run("No Provider", func(t *testing.T) {
		s, _ := newTestServer(t, nil, "")
		rr := do(s, "POST", "/api/connect", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Notification)
		assert.Equal(t, "No Wallet Detected", resp.Notification.Title)
	})

	t.Run("Static Provider", func(t *testing.T) {
		s, _ := newTestServer(t, staticProvider(t), "")
		rr := do(s, "POST", "/api/connect", "")
		assert.Equal(t, http.StatusOK, rr.Code)

		var note models.Notification
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &note))
		assert.Equal(t, "Wallet Connected", note.Title)
		assert.Equal(t, "Connected to "+testAddress, note.Description)

		var status Status
		require.NoError(t, json.Unmarshal(do(s, "GET", "/api/status", "").Body.Bytes(), &status))
		assert.True(t, status.Connected)
		assert.Equal(t, testAddress, status.Address)
	})
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name     string
		connect  bool
		body     string
		wantCode int
		check    func(t *testing.T, body []byte)
	}{
		{
			name:     "Not Connected",
			body:     `{"message":"What is my balance?"}`,
			wantCode: http.StatusPreconditionFailed,
			check: func(t *testing.T, body []byte) {
				var resp errorResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				require.NotNil(t, resp.Notification)
				assert.Equal(t, "Wallet Not Connected", resp.Notification.Title)
			},
		},
		{name: "Empty Message", connect: true, body: `{"message":"   "}`, wantCode: http.StatusBadRequest},
		{name: "Invalid Body", connect: true, body: `{"message":`, wantCode: http.StatusBadRequest},
		{
			name:     "Balance",
			connect:  true,
			body:     `{"message":"What is my balance?"}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var turn models.ChatTurn
				require.NoError(t, json.Unmarshal(body, &turn))
				assert.Equal(t, models.RoleAssistant, turn.Role)
				assert.Contains(t, turn.Content, "ETHEREUM: $1234.56")
				assert.NotEmpty(t, turn.ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, staticProvider(t), `<tool_call>{"id":0,"name":"get_balance"}</tool_call>`)
			if tt.connect {
				require.Equal(t, http.StatusOK, do(s, "POST", "/api/connect", "").Code)
			}
			rr := do(s, "POST", "/api/send", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.check != nil {
				tt.check(t, rr.Body.Bytes())
			}
		})
	}
}

func TestHandleMessagesAndHistory(t *testing.T) {
	s, history := newTestServer(t, staticProvider(t), `<tool_call>{"name":"get_balance"}</tool_call>`)
	require.Equal(t, http.StatusOK, do(s, "POST", "/api/connect", "").Code)
	require.Equal(t, http.StatusOK, do(s, "POST", "/api/send", `{"message":"What is my balance?"}`).Code)

	var turns []models.ChatTurn
	require.NoError(t, json.Unmarshal(do(s, "GET", "/api/messages", "").Body.Bytes(), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "What is my balance?", turns[0].Content)

	var samples []models.BalanceSample
	require.NoError(t, json.Unmarshal(do(s, "GET", "/api/history", "").Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, 1234.56, samples[0].TotalValue)

	rr := do(s, "POST", "/api/disconnect", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, history.Values(testAddress))
	assert.Equal(t, "[]\n", do(s, "GET", "/api/history", "").Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, "GET", "/api/send", "").Code)
}

func TestHandleWS(t *testing.T) {
	s, _ := newTestServer(t, staticProvider(t), "no tool call here")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.listenToConversation(ctx, s.assistant.Conversation().Subscribe())

	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "initial", msg["type"])

	require.Equal(t, http.StatusOK, do(s, "POST", "/api/connect", "").Code)
	require.Equal(t, http.StatusOK, do(s, "POST", "/api/send", `{"message":"hi"}`).Code)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var events []conversation.Event
	for i := 0; i < 2; i++ {
		var ev struct {
			Type conversation.EventType `json:"type"`
			Data models.ChatTurn        `json:"data"`
		}
		require.NoError(t, ws.ReadJSON(&ev))
		events = append(events, conversation.Event{Type: ev.Type, Data: ev.Data})
	}
	assert.Equal(t, conversation.EventTurnAppended, events[0].Type)
	assert.Equal(t, "hi", events[0].Data.(models.ChatTurn).Content)
	assert.Equal(t, assistant.MsgUnknownFunction, events[1].Data.(models.ChatTurn).Content)
}
