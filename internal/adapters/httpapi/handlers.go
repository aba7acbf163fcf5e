// Package httpapi exposes the monitor over HTTP. Destructive operations
// require an explicit confirm flag; without it the handler answers with the
// preview or a confirmation error instead of acting.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
	"github.com/m-silliman/svc-queue-monitor/internal/service"
	"github.com/m-silliman/svc-queue-monitor/internal/supervisor"
)

type (
	RequestHandler struct {
		supervisor *supervisor.Supervisor
		ops        service.OperationsService
		cfg        config.AppConfig
		logger     infrastructure.Logger
	}

	connectRequest struct {
		Endpoint    string `json:"endpoint"`
		DisplayName string `json:"display_name,omitempty"`
	}

	refreshIntervalRequest struct {
		Interval string `json:"interval"`
	}

	loadConnectionsRequest struct {
		AutoConnect bool `json:"auto_connect"`
	}

	moveRequest struct {
		SourcePath string `json:"source_path"`
		TargetPath string `json:"target_path"`
		MessageID  string `json:"message_id"`
	}

	resendRequest struct {
		QueuePath  string `json:"queue_path"`
		MessageID  string `json:"message_id"`
		TargetPath string `json:"target_path,omitempty"`
	}

	bulkDeleteRequest struct {
		QueuePath  string   `json:"queue_path"`
		MessageIDs []string `json:"message_ids"`
		Confirm    bool     `json:"confirm"`
	}

	purgeRequest struct {
		QueuePath string `json:"queue_path"`
		Confirm   bool   `json:"confirm"`
	}

	exportRequest struct {
		QueuePath  string   `json:"queue_path"`
		MessageIDs []string `json:"message_ids,omitempty"`
		Format     string   `json:"format"`
	}
)

func NewRequestHandler(
	sup *supervisor.Supervisor,
	ops service.OperationsService,
	cfg config.AppConfig,
	logger infrastructure.Logger,
) *RequestHandler {
	return &RequestHandler{
		supervisor: sup,
		ops:        ops,
		cfg:        cfg,
		logger:     logger,
	}
}

func (h *RequestHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.cfg.ServiceName,
		"version": h.cfg.ServiceVersion,
	})
}

func (h *RequestHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	conn, err := h.supervisor.Connect(r.Context(), req.Endpoint, req.DisplayName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}

func (h *RequestHandler) ListConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.Connections())
}

func (h *RequestHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.supervisor.Connection(chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

func (h *RequestHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.Disconnect(chi.URLParam(r, "connectionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) RefreshConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionID")
	includeSystem := r.URL.Query().Get("include_system") == "true"

	if err := h.supervisor.RefreshConnection(r.Context(), connectionID, includeSystem); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.supervisor.Connection(connectionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

func (h *RequestHandler) ProbeConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.TestConnectionHealth(r.Context(), chi.URLParam(r, "connectionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *RequestHandler) SetRefreshInterval(w http.ResponseWriter, r *http.Request) {
	var req refreshIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "BAD_REQUEST",
			Message: "interval must be a duration such as 5s or 1m",
		})
		return
	}

	connectionID := chi.URLParam(r, "connectionID")
	if err := h.supervisor.SetRefreshInterval(connectionID, interval); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.supervisor.Connection(connectionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

func (h *RequestHandler) PauseAutoRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.PauseAutoRefresh(chi.URLParam(r, "connectionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) ResumeAutoRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.ResumeAutoRefresh(chi.URLParam(r, "connectionID")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) SaveConnections(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.SaveConnections(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) LoadConnections(w http.ResponseWriter, r *http.Request) {
	var req loadConnectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	saved, err := h.supervisor.LoadConnections(r.Context(), req.AutoConnect)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func (h *RequestHandler) ClearSavedConnections(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.ClearSavedConnections(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	conn, err := h.supervisor.Connection(chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conn.Queues)
}

func (h *RequestHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	queuePath, ok := requiredQueue(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	messages, err := h.ops.ListMessages(r.Context(), queuePath, page, pageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *RequestHandler) InspectMessage(w http.ResponseWriter, r *http.Request) {
	queuePath, ok := requiredQueue(w, r)
	if !ok {
		return
	}

	rendering, err := h.ops.InspectMessage(r.Context(), queuePath, chi.URLParam(r, "lookupID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, rendering)
}

func (h *RequestHandler) MoveMessage(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	result, err := h.ops.MoveMessage(r.Context(), req.SourcePath, req.TargetPath, req.MessageID)
	if err != nil && result == nil {
		writeError(w, h.logger, err)
		return
	}

	// A duplicated or failed move is still a result the caller must see.
	writeJSON(w, http.StatusOK, result)
}

func (h *RequestHandler) ResendMessage(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	if err := h.ops.ResendMessage(r.Context(), req.QueuePath, req.MessageID, req.TargetPath); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	queuePath, ok := requiredQueue(w, r)
	if !ok {
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"

	if err := h.ops.DeleteMessage(r.Context(), queuePath, chi.URLParam(r, "messageID"), confirmed); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	result, err := h.ops.DeleteMessages(r.Context(), req.QueuePath, req.MessageIDs, req.Confirm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *RequestHandler) PurgePreview(w http.ResponseWriter, r *http.Request) {
	queuePath, ok := requiredQueue(w, r)
	if !ok {
		return
	}

	preview, err := h.ops.PurgePreview(r.Context(), queuePath)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

func (h *RequestHandler) Purge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	result, err := h.ops.Purge(r.Context(), req.QueuePath, req.Confirm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *RequestHandler) ExportMessages(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid request body"})
		return
	}

	result, err := h.ops.ExportMessages(r.Context(), req.QueuePath, req.MessageIDs, ports.ExportFormat(req.Format))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// StreamEvents pushes supervisor notifications as server-sent events.
func (h *RequestHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "STREAMING_UNSUPPORTED",
			Message: "response writer does not support flushing",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-h.supervisor.Events():
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			_, _ = w.Write([]byte("event: " + string(event.Kind) + "\n"))
			_, _ = w.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()
		}
	}
}

func requiredQueue(w http.ResponseWriter, r *http.Request) (string, bool) {
	queuePath := r.URL.Query().Get("queue")
	if queuePath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "BAD_REQUEST",
			Message: "queue query parameter is required",
		})
		return "", false
	}

	return queuePath, true
}
