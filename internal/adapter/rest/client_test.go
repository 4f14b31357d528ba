package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townsq/internal/domain/service"
	"townsq/pkg/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, ts.Client(), service.StaticToken("test-token"))
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var authSeen string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		authSeen = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	_, err := client.GetChats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", authSeen)
}

func TestGetChatsUnwrapsEnvelope(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[{"id":"c1"},{"id":"c2"}]}`))
	})

	chats, err := client.GetChats(context.Background())

	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c1", chats[0].ID)
}

func TestGetChatsAcceptsBareArray(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"c1"}]`))
	})

	chats, err := client.GetChats(context.Background())

	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestGetMessagesToleratesWrapperAndBareArray(t *testing.T) {
	cases := map[string]string{
		"wrapper":           `{"messages":[{"id":"m1","chat_id":"c1"}]}`,
		"bare array":        `[{"id":"m1","chat_id":"c1"}]`,
		"enveloped wrapper": `{"success":true,"data":{"messages":[{"id":"m1","chat_id":"c1"}]}}`,
		"enveloped array":   `{"success":true,"data":[{"id":"m1","chat_id":"c1"}]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			payload := body
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/messages/c1", r.URL.Path)
				w.Write([]byte(payload))
			})

			messages, err := client.GetMessages(context.Background(), "c1")

			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, "m1", messages[0].ID)
		})
	}
}

func TestErrorEnvelopeMapsToAppError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"error":{"code":"FORBIDDEN","message":"not a participant"}}`))
	})

	_, err := client.GetMessages(context.Background(), "c1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Contains(t, err.Error(), "not a participant")
}

func TestBareStatusCodeMapsToAppError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusServiceUnavailable)
	})

	_, err := client.GetChats(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, "UPSTREAM_ERROR"))
}

func TestSendMessagePostsCorrelationID(t *testing.T) {
	var got sendMessageRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"m1","chat_id":"c1","content":"hello","correlation_id":"corr-1"}`))
	})

	message, err := client.SendMessage(context.Background(), "c1", "hello", nil, "corr-1")

	require.NoError(t, err)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Equal(t, "m1", message.ID)
	assert.Equal(t, "corr-1", message.CorrelationID)
}

func TestMarkAsReadUsesPatch(t *testing.T) {
	var method, path string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.MarkAsRead(context.Background(), "c1"))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/messages/c1/mark-as-read", path)
}

func TestCreateChatReturnsID(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req createChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "biz-1", req.BusinessID)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"id":"chat-9"}}`))
	})

	chatID, err := client.CreateChat(context.Background(), "biz-1")

	require.NoError(t, err)
	assert.Equal(t, "chat-9", chatID)
}
