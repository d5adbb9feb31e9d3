package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

type fakeHistory struct {
	messages []chat.Message
	err      error
	limit    int
}

func (f *fakeHistory) ListMessages(_ context.Context, _ string, limit int) ([]chat.Message, error) {
	f.limit = limit
	return f.messages, f.err
}

func setupRouter(history HistoryStore) (*chi.Mux, *chatservice.Service) {
	logger, _ := test.NewNullLogger()
	chatSvc := chatservice.NewService(chatservice.Config{}, nopDispatcher{}, chatservice.WithLogger(logger))
	handler := New(chatSvc, history, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func doRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestListRoomsIncludesMemberCount(t *testing.T) {
	r, chatSvc := setupRouter(nil)
	_, err := chatSvc.Join("a", chat.JoinPayload{Username: "alice"})
	require.NoError(t, err)

	resp := doRequest(r, http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var rooms []struct {
		ID          string   `json:"id"`
		Users       []string `json:"users"`
		MemberCount int      `json:"memberCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rooms))
	require.Len(t, rooms, 3)
	assert.Equal(t, "general", rooms[0].ID)
	assert.Equal(t, 1, rooms[0].MemberCount)
	assert.Equal(t, []string{"a"}, rooms[0].Users)
	assert.Equal(t, 0, rooms[1].MemberCount)
}

func TestCreateRoom(t *testing.T) {
	r, chatSvc := setupRouter(nil)

	resp := doRequest(r, http.MethodPost, "/rooms", []byte(`{"name":"Go Talk!","description":"gophers"}`))
	require.Equal(t, http.StatusCreated, resp.Code)

	var created chat.Room
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "go-talk", created.ID)
	assert.Len(t, chatSvc.Rooms(), 4)

	resp = doRequest(r, http.MethodPost, "/rooms", []byte(`{"name":"go talk"}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCreateRoomRejectsBadInput(t *testing.T) {
	r, _ := setupRouter(nil)

	for _, body := range []string{``, `{`, `{"name":""}`, `{"name":"   "}`} {
		resp := doRequest(r, http.MethodPost, "/rooms", []byte(body))
		assert.Equal(t, http.StatusBadRequest, resp.Code, "body %q", body)
	}
}

func TestListMessagesFromLiveLog(t *testing.T) {
	r, chatSvc := setupRouter(nil)
	_, err := chatSvc.Join("a", chat.JoinPayload{Username: "alice"})
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		_, err := chatSvc.SendMessage("a", chat.SendMessagePayload{RoomID: "general", Content: content})
		require.NoError(t, err)
	}

	resp := doRequest(r, http.MethodGet, "/rooms/general/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var messages []chat.Message
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "two", messages[0].Content)
	assert.Equal(t, "three", messages[1].Content)
}

func TestListMessagesPrefersHistoryStore(t *testing.T) {
	history := &fakeHistory{messages: []chat.Message{{ID: "x", RoomID: "general", Content: "archived"}}}
	r, _ := setupRouter(history)

	resp := doRequest(r, http.MethodGet, "/rooms/general/messages?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var messages []chat.Message
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "archived", messages[0].Content)
	assert.Equal(t, 5, history.limit)
}

func TestListMessagesMergesLiveReactions(t *testing.T) {
	history := &fakeHistory{}
	r, chatSvc := setupRouter(history)
	_, err := chatSvc.Join("a", chat.JoinPayload{Username: "alice"})
	require.NoError(t, err)
	msg, err := chatSvc.SendMessage("a", chat.SendMessagePayload{RoomID: "general", Content: "vote"})
	require.NoError(t, err)
	require.NoError(t, chatSvc.AddReaction("a", chat.ReactionPayload{MessageID: msg.ID, RoomID: "general", Reaction: "heart"}))

	history.messages = []chat.Message{
		{ID: msg.ID, RoomID: "general", UserID: "old-conn", Content: "from a previous run"},
		{ID: msg.ID, RoomID: "general", UserID: "a", Content: "vote"},
	}

	resp := doRequest(r, http.MethodGet, "/rooms/general/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var messages []chat.Message
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Empty(t, messages[0].Reactions)
	assert.Equal(t, "from a previous run", messages[0].Content)
	assert.Equal(t, msg.ID, messages[1].ID)
	assert.Equal(t, []string{"a"}, messages[1].Reactions["heart"])
}

func TestListMessagesFallsBackWhenStoreFails(t *testing.T) {
	r, _ := setupRouter(&fakeHistory{err: errors.New("locked")})

	resp := doRequest(r, http.MethodGet, "/rooms/general/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestListMessagesErrors(t *testing.T) {
	r, _ := setupRouter(nil)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/rooms/nope/messages", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/rooms/general/messages?limit=0", nil).Code)
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"General":        "general",
		"  Go   Talk!! ": "go-talk",
		"Off-Topic 2024": "off-topic-2024",
		"日本":             "",
		"--dashes--":     "dashes",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), "slug of %q", in)
	}
}
