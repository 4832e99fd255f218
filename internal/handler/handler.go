package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// decodeOptional decodes the request body into v. An empty body leaves v
// untouched.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
