package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

type nopDispatcher struct{}

func (nopDispatcher) BroadcastAll(chat.Event)    {}
func (nopDispatcher) Unicast(string, chat.Event) {}

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	chatSvc := chatservice.NewService(chatservice.Config{}, nopDispatcher{}, chatservice.WithLogger(logger))

	_, err := chatSvc.Join("a", chat.JoinPayload{Username: "alice"})
	require.NoError(t, err)
	_, err = chatSvc.Join("b", chat.JoinPayload{Username: "bob"})
	require.NoError(t, err)
	require.NoError(t, chatSvc.Disconnect("b"))

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestListUsers(t *testing.T) {
	r, _ := setupRouter(t)

	resp := get(r, "/users")
	require.Equal(t, http.StatusOK, resp.Code)
	var sessions []chat.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)
	assert.False(t, sessions[1].Online)

	resp = get(r, "/users?online=true")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Username)
}

func TestGetUser(t *testing.T) {
	r, _ := setupRouter(t)

	resp := get(r, "/users/a")
	require.Equal(t, http.StatusOK, resp.Code)
	var session chat.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	assert.Equal(t, "general", session.CurrentRoom)

	assert.Equal(t, http.StatusNotFound, get(r, "/users/zzz").Code)
}
