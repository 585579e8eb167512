package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"floppy/internal/api"
	"floppy/internal/blobstore"
)

// statusFromError maps store error kinds onto HTTP status codes.
func statusFromError(err error) int {
	switch blobstore.KindOf(err) {
	case blobstore.KindNotFound:
		return http.StatusNotFound
	case blobstore.KindExpired:
		return http.StatusGone
	case blobstore.KindOther:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError answers a blob request with the error's plain-text
// message.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	fields := []any{"status", status, "kind", blobstore.KindOf(err).String(), "error", err}
	var storeErr *blobstore.Error
	if errors.As(err, &storeErr) && storeErr.Err != nil {
		fields = append(fields, "cause", storeErr.Err)
	}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	if status >= 500 {
		s.log().Error("request error", fields...)
	} else {
		s.log().Debug("request rejected", fields...)
	}
	s.writeText(w, status, err.Error()+"\n")
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log().Debug("write text response", "status", status, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	s.log().Error("request error", "status", status, "code", code, "error", err, "method", r.Method, "path", r.URL.Path)
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Code: code})
}
