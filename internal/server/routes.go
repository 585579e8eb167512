package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, metrics and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.HandleFunc("GET /v1/history/{key}", s.handleHistory)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	// Uploads. The optional name segment is ignored.
	mux.HandleFunc("PUT /{$}", s.handleUpload)
	mux.HandleFunc("PUT /{name}", s.handleUpload)

	// Downloads via ?file=KEY, banner otherwise. Anything else gets the
	// banner with a 404, whatever the method.
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}
