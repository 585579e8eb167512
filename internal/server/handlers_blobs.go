package server

import (
	"fmt"
	"io"
	"net/http"
)

const bannerTemplate = `floppy: temporary file drop

PUT:
> $ curl -T ./sample.txt %[1]s

GET:
> $ curl %[1]s?file=8079770645379253334

Files are kept for up to 30 days; the larger the file, the shorter its stay.
`

func (s *Server) banner() string {
	return fmt.Sprintf(bannerTemplate, s.store.PublicURL())
}

// handleIndex serves a download when ?file= is present and the banner
// otherwise.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("file") {
		s.handleDownload(w, r)
		return
	}
	s.writeText(w, http.StatusOK, s.banner())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeText(w, http.StatusNotFound, s.banner())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.checkRetention(r)

	blob, err := s.store.Open(r.Context(), r.URL.Query().Get("file"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	defer blob.Close()

	http.ServeContent(w, r, blob.Name, blob.CreatedAt, blob)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.checkRetention(r)

	// One byte past the ceiling is enough for the store to refuse the
	// payload without reading the rest of it.
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadBytes+1))
	if err != nil {
		s.log().WarnContext(r.Context(), "read upload body", "error", err, "remote_addr", r.RemoteAddr)
		s.writeText(w, http.StatusBadRequest, "Could not read the upload.\n")
		return
	}

	res, err := s.store.Put(r.Context(), body)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if int64(len(body)) > s.maxUploadBytes {
		// Let the client stop sending the rest of an oversized body.
		w.Header().Set("Connection", "close")
	}
	s.writeText(w, http.StatusOK, res.String())
}
