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

type TagState struct {
	Tags    []domain.Tag `json:"tags"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}

type RenameTagBody struct {
	Name string `json:"name" validate:"required,max=64"`
}

type NoteTagBody struct {
	Name string `json:"name" validate:"required,max=64"`
}

type TagHandler struct {
	tags     *cache.TagCache
	validate *validator.Validate
}

func NewTagHandler(tags *cache.TagCache) *TagHandler {
	return &TagHandler{
		tags:     tags,
		validate: validator.New(),
	}
}

func (h *TagHandler) state() TagState {
	return TagState{
		Tags:    h.tags.Tags(),
		Loading: h.tags.Loading(),
		Error:   h.tags.ErrMessage(),
	}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.state())
}

func (h *TagHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.tags.LoadAll(r.Context())
	response.Success(w, h.state())
}

func (h *TagHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.tags.ClearError()
	response.NoContent(w)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tag, err := h.tags.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Created(w, tag)
}

func (h *TagHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var body RenameTagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tag, err := h.tags.Rename(r.Context(), mux.Vars(r)["id"], body.Name)
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, tag)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.tags.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string]bool{"deleted": deleted})
}

func (h *TagHandler) AddToNote(w http.ResponseWriter, r *http.Request) {
	var body NoteTagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tag, err := h.tags.AddToNote(r.Context(), mux.Vars(r)["id"], body.Name)
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, tag)
}

func (h *TagHandler) RemoveFromNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := h.tags.RemoveFromNote(r.Context(), vars["id"], vars["tagId"])
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string]bool{"removed": removed})
}

func (h *TagHandler) CleanupUnused(w http.ResponseWriter, r *http.Request) {
	removed, err := h.tags.CleanupUnused(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string]int{"removed": removed})
}

func (h *TagHandler) Search(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, tags)
}
