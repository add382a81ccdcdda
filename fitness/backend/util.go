package backend

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// maxBodySize limits request bodies
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	jsonData, _ := json.Marshal(value)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// readBody reads the raw request body
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("cannot read body: %w", err)
	}
	return body, nil
}

// readJSON decodes the request body into value
func readJSON(r *http.Request, value interface{}) ([]byte, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(body, value); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return body, nil
}
