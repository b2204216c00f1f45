package rest

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// PageMeta is the pagination block of list responses.
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// HasNext reports whether another page exists after this one.
func (m PageMeta) HasNext() bool {
	return m.Limit > 0 && m.Page*m.Limit < m.Total
}

// Page is one page of a paginated collection.
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Meta    *PageMeta       `json:"meta,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type dataResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Meta    *PageMeta `json:"meta,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// WriteData encodes data into a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataResponse{Success: true, Data: data})
}

// WritePage encodes items into a paginated success envelope.
func WritePage(w http.ResponseWriter, items any, meta PageMeta) {
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: items, Meta: &meta})
}

// WriteError encodes an error envelope.
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
