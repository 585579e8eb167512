package server

import (
	"fmt"
	"net/http"

	"floppy/internal/api"
	"floppy/internal/keys"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	usage, err := s.store.Usage(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, "internal", err)
		return
	}

	resp := api.InfoResponse{
		StorageRoot:             s.store.Root(),
		PublicURL:               s.store.PublicURL(),
		Blobs:                   usage.Blobs,
		Bytes:                   usage.Bytes,
		MaxBlobBytes:            s.maxUploadBytes,
		GuardianIntervalMinutes: int(s.guardianInterval.Minutes()),
	}
	if s.guardian != nil {
		if last := s.guardian.LastCheck(); !last.IsZero() {
			resp.LastSweep = &last
		}
	}
	if s.ledger != nil {
		totals, err := s.ledger.Totals(r.Context())
		if err != nil {
			s.writeJSONError(w, r, http.StatusInternalServerError, "internal", err)
			return
		}
		resp.Ledger = &api.LedgerTotals{
			StoredCount:  totals.StoredCount,
			StoredBytes:  totals.StoredBytes,
			DeletedCount: totals.DeletedCount,
			DeletedBytes: totals.DeletedBytes,
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "ledger is not enabled", Code: "ledger_disabled"})
		return
	}
	key := r.PathValue("key")
	if err := keys.ValidateUserKey(key); err != nil {
		s.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error(), Code: "invalid_key"})
		return
	}

	events, err := s.ledger.History(r.Context(), key)
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, "internal", fmt.Errorf("read history: %w", err))
		return
	}
	resp := api.HistoryResponse{Key: key, Events: make([]api.BlobEvent, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, api.BlobEvent{Kind: string(ev.Kind), SizeBytes: ev.SizeBytes, At: ev.At})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
