package handler

import (
	"net/http"

	"inkdown-client/internal/cache"
	"inkdown-client/internal/domain"
	"inkdown-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// NoteState is the observable state of the note cache.
type NoteState struct {
	Notes        []domain.NoteWithTags `json:"notes"`
	IncludeTrash bool                  `json:"include_trash"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
}

type SaveNoteBody struct {
	Title   string `json:"title" validate:"max=512"`
	Content string `json:"content"`
}

type ReloadBody struct {
	IncludeTrash bool `json:"include_trash"`
}

type NoteHandler struct {
	notes    *cache.NoteCache
	validate *validator.Validate
}

func NewNoteHandler(notes *cache.NoteCache) *NoteHandler {
	return &NoteHandler{
		notes:    notes,
		validate: validator.New(),
	}
}

func (h *NoteHandler) state() NoteState {
	return NoteState{
		Notes:        h.notes.Notes(),
		IncludeTrash: h.notes.IncludeTrash(),
		Loading:      h.notes.Loading(),
		Error:        h.notes.ErrMessage(),
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.state())
}

func (h *NoteHandler) Reload(w http.ResponseWriter, r *http.Request) {
	var body ReloadBody
	if err := decodeOptional(r, &body); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	h.notes.LoadAll(r.Context(), body.IncludeTrash || queryBool(r, "include_trash"))
	response.Success(w, h.state())
}

func (h *NoteHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.notes.ClearError()
	response.NoContent(w)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.notes.Create(r.Context(), req.Title, req.Content, req.Tags)
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) Open(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.LoadContent(r.Context(), mux.Vars(r)["id"]); err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, h.notes.OpenNote())
}

func (h *NoteHandler) Current(w http.ResponseWriter, r *http.Request) {
	note := h.notes.OpenNote()
	if note == nil {
		response.NotFound(w, "no open note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.notes.CloseNote()
	response.NoContent(w)
}

func (h *NoteHandler) Save(w http.ResponseWriter, r *http.Request) {
	var body SaveNoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.notes.Save(r.Context(), mux.Vars(r)["id"], body.Title, body.Content); err != nil {
		response.Err(w, err)
		return
	}

	response.NoContent(w)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		response.Err(w, err)
		return
	}

	response.NoContent(w)
}

func (h *NoteHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Restore(r.Context(), mux.Vars(r)["id"]); err != nil {
		response.Err(w, err)
		return
	}

	response.NoContent(w)
}

func (h *NoteHandler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.PermanentlyDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		response.Err(w, err)
		return
	}

	response.NoContent(w)
}

func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.notes.ToggleFavorite(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string]bool{"is_favorite": favorite})
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes, err := h.notes.Search(r.Context(), q.Get("q"), q.Get("tag"))
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, notes)
}
