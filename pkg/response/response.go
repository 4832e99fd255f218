package response

import (
	"net/http"

	"inkdown-client/internal/gateway"

	"github.com/goccy/go-json"
	"github.com/jmgilman/go/errors"
)

type Response struct {
	Success bool                  `json:"success"`
	Data    interface{}           `json:"data,omitempty"`
	Error   *errors.ErrorResponse `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: statusCode < 400,
		Data:    data,
	})
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes err with the status matching its gateway kind.
func Err(w http.ResponseWriter, err error) {
	write(w, StatusFor(err), errors.ToJSON(err))
}

func Error(w http.ResponseWriter, statusCode int, code errors.ErrorCode, message string) {
	write(w, statusCode, errors.ToJSON(errors.New(code, message)))
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, errors.CodeInvalidInput, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, errors.CodeUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, errors.CodeNotFound, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, errors.CodeInternal, message)
}

func StatusFor(err error) int {
	switch gateway.KindOf(err) {
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindValidationFailed:
		switch errors.GetCode(err) {
		case errors.CodeAlreadyExists, errors.CodeConflict:
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case gateway.KindBackendUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, statusCode int, body *errors.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   body,
	})
}
