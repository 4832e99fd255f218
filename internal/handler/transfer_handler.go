package handler

import (
	"errors"
	"io/fs"
	"net/http"

	"inkdown-client/internal/markdown"
	"inkdown-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

type ImportBody struct {
	Dir string `json:"dir" validate:"required"`
}

type TransferHandler struct {
	exporter *markdown.Exporter
	importer *markdown.Importer
	validate *validator.Validate
}

func NewTransferHandler(exporter *markdown.Exporter, importer *markdown.Importer) *TransferHandler {
	return &TransferHandler{
		exporter: exporter,
		importer: importer,
		validate: validator.New(),
	}
}

func (h *TransferHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	files, err := h.exporter.ExportAll(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string][]string{"files": files})
}

func (h *TransferHandler) ExportNote(w http.ResponseWriter, r *http.Request) {
	path, err := h.exporter.ExportNote(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, map[string]string{"path": path})
}

func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	var body ImportBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.importer.ImportDir(r.Context(), body.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		response.NotFound(w, "import directory not found: "+body.Dir)
		return
	}
	if err != nil {
		response.Err(w, err)
		return
	}

	response.Success(w, result)
}
