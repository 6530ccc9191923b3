package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"assetforge/internal/events"
)

// StreamEvents serves the pipeline event feed over server-sent events.
// Every subscriber sees the same totally ordered sequence.
func (a *App) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	ch, cancel := a.Events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				a.Logger.Error().Err(err).Uint64("seq", evt.Seq).Msg("http: marshal event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type controlRequest struct {
	Kind    string `json:"kind"`
	AssetID string `json:"asset_id"`
}

// SendControl accepts an operator command for the pipeline dispatcher.
func (a *App) SendControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	kind := events.CommandKind(req.Kind)
	switch kind {
	case events.CommandPause, events.CommandResume, events.CommandAbort:
	case events.CommandSkip:
		if req.AssetID == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "skip requires asset_id")
			return
		}
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown command kind")
		return
	}

	if err := a.Events.SendControl(events.Command{Kind: kind, AssetID: req.AssetID}); err != nil {
		if errors.Is(err, events.ErrControlQueueFull) {
			a.error(w, http.StatusTooManyRequests, "control_queue_full", "command queue is full, retry shortly")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "command not accepted")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": req.Kind})
}
