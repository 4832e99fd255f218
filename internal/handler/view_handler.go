package handler

import (
	"net/http"

	"inkdown-client/internal/domain"
	"inkdown-client/internal/projection"
	"inkdown-client/pkg/response"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

type ViewHandler struct {
	projection *projection.Projection
	views      map[string]func() []domain.NoteWithTags
}

func NewViewHandler(p *projection.Projection) *ViewHandler {
	return &ViewHandler{
		projection: p,
		views: map[string]func() []domain.NoteWithTags{
			"visible":   p.Visible,
			"favorites": p.Favorites,
			"untagged":  p.Untagged,
			"trashed":   p.Trashed,
			"text":      p.TextFiltered,
			"tag":       p.TagFiltered,
		},
	}
}

func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	view, ok := h.views[name]
	if !ok {
		response.NotFound(w, "unknown view: "+name)
		return
	}

	response.Success(w, view())
}

func (h *ViewHandler) GetFilter(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.projection.Filter())
}

// SetFilter replaces the query and the selected tag together.
func (h *ViewHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var f projection.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	h.projection.SetQuery(f.Query)
	h.projection.SelectTag(f.SelectedTag)
	response.Success(w, h.projection.Filter())
}

func (h *ViewHandler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	h.projection.ClearFilter()
	response.NoContent(w)
}
