package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkdown-client/internal/config"
	"inkdown-client/internal/domain"
	"inkdown-client/internal/handler"
	"inkdown-client/internal/websocket"

	"github.com/goccy/go-json"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testClient struct {
	t     *testing.T
	app   *App
	url   string
	token string
}

func newTestApp(t *testing.T) *testClient {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.SQLitePath = filepath.Join(dir, "inkdown.db")
	cfg.Export.Dir = filepath.Join(dir, "export")
	cfg.Auth.Secret = "app-test-secret"

	a, err := New(context.Background(), &cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Manager.Run(ctx)

	a.Load(context.Background())
	return &testClient{t: t, app: a, url: srv.URL, token: a.Token}
}

func (c *testClient) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.url+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (c *testClient) notes(path string) []domain.NoteWithTags {
	c.t.Helper()

	status, env := c.do(http.MethodGet, path, nil)
	require.Equal(c.t, http.StatusOK, status)
	var notes []domain.NoteWithTags
	require.NoError(c.t, json.Unmarshal(env.Data, &notes))
	return notes
}

func (c *testClient) state() handler.NoteState {
	c.t.Helper()

	status, env := c.do(http.MethodGet, "/api/v1/notes", nil)
	require.Equal(c.t, http.StatusOK, status)
	var state handler.NoteState
	require.NoError(c.t, json.Unmarshal(env.Data, &state))
	return state
}

func (c *testClient) create(title string) domain.NoteWithTags {
	c.t.Helper()

	content := "body of " + title
	status, env := c.do(http.MethodPost, "/api/v1/notes", domain.CreateNoteRequest{Title: &title, Content: &content})
	require.Equal(c.t, http.StatusCreated, status)
	var note domain.NoteWithTags
	require.NoError(c.t, json.Unmarshal(env.Data, &note))
	return note
}

func ids(notes []domain.NoteWithTags) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func TestAPI_RequiresSessionToken(t *testing.T) {
	c := newTestApp(t)
	c.token = ""

	status, env := c.do(http.MethodGet, "/api/v1/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_NoteLifecycle(t *testing.T) {
	c := newTestApp(t)

	first := c.create("Shopping List")
	second := c.create("Recipe")
	assert.Equal(t, "body of Shopping List", first.Content)

	state := c.state()
	assert.Equal(t, []string{second.ID, first.ID}, ids(state.Notes))

	status, _ := c.do(http.MethodPut, "/api/v1/notes/"+first.ID, handler.SaveNoteBody{Title: "Groceries", Content: "milk"})
	require.Equal(t, http.StatusNoContent, status)

	status, env := c.do(http.MethodPost, "/api/v1/notes/"+first.ID+"/open", nil)
	require.Equal(t, http.StatusOK, status)
	var open domain.NoteWithTags
	require.NoError(t, json.Unmarshal(env.Data, &open))
	assert.Equal(t, "Groceries", open.Title)
	assert.Equal(t, "milk", open.Content)

	status, env = c.do(http.MethodPost, "/api/v1/notes/"+first.ID+"/favorite", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"is_favorite":true}`, string(env.Data))
	assert.Equal(t, []string{first.ID}, ids(c.notes("/api/v1/views/favorites")))

	status, _ = c.do(http.MethodDelete, "/api/v1/notes/"+first.ID, nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, []string{second.ID}, ids(c.state().Notes))

	status, _ = c.do(http.MethodGet, "/api/v1/notes/open", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodPost, "/api/v1/notes/reload", handler.ReloadBody{IncludeTrash: true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{first.ID}, ids(c.notes("/api/v1/views/trashed")))
	assert.Equal(t, []string{second.ID}, ids(c.notes("/api/v1/views/visible")))

	// saving a trashed note is rejected
	status, env = c.do(http.MethodPut, "/api/v1/notes/"+first.ID, handler.SaveNoteBody{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)

	status, _ = c.do(http.MethodPost, "/api/v1/notes/"+first.ID+"/restore", nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, c.notes("/api/v1/views/trashed"))

	status, _ = c.do(http.MethodDelete, "/api/v1/notes/"+second.ID, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = c.do(http.MethodDelete, "/api/v1/notes/"+second.ID+"/permanent", nil)
	require.Equal(t, http.StatusNoContent, status)

	assert.NotContains(t, ids(c.state().Notes), second.ID)
	status, env = c.do(http.MethodPost, "/api/v1/notes/"+second.ID+"/open", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAPI_TagsAndFilters(t *testing.T) {
	c := newTestApp(t)

	shopping := c.create("Shopping List")
	plain := c.create("Plain")

	status, _ := c.do(http.MethodPost, "/api/v1/notes/"+shopping.ID+"/tags", handler.NoteTagBody{Name: "Errands"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, c.app.Notes.Wait())

	status, env := c.do(http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, status)
	var tags handler.TagState
	require.NoError(t, json.Unmarshal(env.Data, &tags))
	require.Len(t, tags.Tags, 1)
	assert.Equal(t, "Errands", tags.Tags[0].Name)
	assert.Equal(t, 1, tags.Tags[0].NoteCount)

	status, env = c.do(http.MethodPost, "/api/v1/tags", domain.CreateTagRequest{Name: "errands"})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_EXISTS", env.Error.Code)

	assert.Equal(t, []string{plain.ID}, ids(c.notes("/api/v1/views/untagged")))

	status, _ = c.do(http.MethodPut, "/api/v1/filter", map[string]string{"selected_tag": "Errands"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{shopping.ID}, ids(c.notes("/api/v1/views/visible")))

	status, _ = c.do(http.MethodPut, "/api/v1/filter", map[string]string{"query": "plain", "selected_tag": "All Notes"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{plain.ID}, ids(c.notes("/api/v1/views/visible")))

	status, _ = c.do(http.MethodDelete, "/api/v1/filter", nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Len(t, c.notes("/api/v1/views/visible"), 2)

	status, _ = c.do(http.MethodGet, "/api/v1/views/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = c.do(http.MethodDelete, "/api/v1/notes/"+shopping.ID+"/tags/"+tags.Tags[0].ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"removed":true}`, string(env.Data))

	status, env = c.do(http.MethodPost, "/api/v1/tags/cleanup", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"removed":1}`, string(env.Data))
	assert.Empty(t, c.app.Tags.Tags())
}

func TestAPI_ExportAndImport(t *testing.T) {
	c := newTestApp(t)
	c.create("Trip: Lisbon")

	status, env := c.do(http.MethodPost, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"files":["Trip_ Lisbon.md"]}`, string(env.Data))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idea.md"), []byte("# New idea\n"), 0o644))

	status, env = c.do(http.MethodPost, "/api/v1/import", handler.ImportBody{Dir: dir})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"imported":["idea.md"],"skipped":[]}`, string(env.Data))
	assert.Len(t, c.state().Notes, 2)

	status, _ = c.do(http.MethodPost, "/api/v1/import", handler.ImportBody{Dir: filepath.Join(dir, "missing")})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodPost, "/api/v1/import", handler.ImportBody{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_WebSocketStreamsEvents(t *testing.T) {
	c := newTestApp(t)

	wsURL := "ws" + strings.TrimPrefix(c.url, "http") + "/ws?token=" + c.token
	conn, _, err := ws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() websocket.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg websocket.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, websocket.TypeWelcome, read().Type)

	note := c.create("Streamed")
	msg := read()
	require.Equal(t, websocket.TypeEvent, msg.Type)
	var payload websocket.EventPayload
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, note.ID, payload.NoteID)

	reload, err := websocket.NewMessage(websocket.TypeReload, websocket.ReloadPayload{IncludeTrash: true})
	require.NoError(t, err)
	data, err := json.Marshal(reload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))

	msg = read()
	require.Equal(t, websocket.TypeAck, msg.Type)
	var ack websocket.AckPayload
	require.NoError(t, msg.UnmarshalPayload(&ack))
	assert.Equal(t, websocket.TypeReload, ack.Type)
	assert.True(t, ack.Success)
	assert.True(t, c.app.Notes.IncludeTrash())
}

func TestAPI_WebSocketRejectsMissingToken(t *testing.T) {
	c := newTestApp(t)

	_, resp, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(c.url, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
