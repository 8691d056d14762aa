package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

const (
	eventProgress  = "progress"
	eventCompleted = "completed"
)

type BulkHandler interface {
	Preview(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Execute(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)

	// SSE
	Events(w http.ResponseWriter, r *http.Request)
}

type bulkHandlerImpl struct {
	bulkService bulk.BulkService
	hub         *sse.Hub
	keepalive   time.Duration
}

func NewBulkHandler(bulkService bulk.BulkService, hub *sse.Hub) BulkHandler {
	return &bulkHandlerImpl{bulkService: bulkService, hub: hub, keepalive: 30 * time.Second}
}

func (h *bulkHandlerImpl) Preview(w http.ResponseWriter, r *http.Request) {
	var req bulk.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.Actor = middleware.Actor(r.Context())

	detail, err := h.bulkService.Preview(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Bulk operation previewed", bulk.NewOperationDetailResponse(detail))
}

func (h *bulkHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bulkService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, bulk.NewOperationDetailResponse(detail))
}

// Execute runs the operation within the request and streams per-item
// progress to subscribers of the operation's events endpoint.
func (h *bulkHandlerImpl) Execute(w http.ResponseWriter, r *http.Request) {
	req := bulk.ExecuteRequest{
		OperationID: chi.URLParam(r, "id"),
		Actor:       middleware.Actor(r.Context()),
	}

	result, err := h.bulkService.Execute(r.Context(), req, func(p bulk.Progress) {
		h.hub.Publish(p.OperationID, sse.Event{Event: eventProgress, Data: p})
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	body := bulk.NewResultResponse(result)
	h.hub.Publish(result.Operation.ID, sse.Event{Event: eventCompleted, Data: body.Operation})

	if err := result.Err(); err != nil {
		response.MultiStatus(w, err.Error(), body)
		return
	}
	response.SuccessWithMessage(w, "Bulk operation "+string(result.Operation.Status), body)
}

func (h *bulkHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	req := bulk.ExecuteRequest{
		OperationID: chi.URLParam(r, "id"),
		Actor:       middleware.Actor(r.Context()),
	}

	op, err := h.bulkService.Cancel(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Bulk operation cancellation requested", bulk.NewOperationResponse(op))
}

// Events streams progress of one operation as server-sent events. The current
// state is sent first so late subscribers see where the run stands.
func (h *bulkHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bulkService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(detail.Operation.ID)
	defer cleanup()

	writeEvent(w, "snapshot", bulk.NewOperationResponse(detail.Operation))
	flusher.Flush()
	if detail.Operation.Status.IsTerminal() {
		return
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event.Event, event.Data)
			flusher.Flush()
			if event.Event == eventCompleted {
				return
			}

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
