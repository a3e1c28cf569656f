package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/projection"
	"stablehand/internal/selection/service"
	"stablehand/internal/selection/turnorder"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/httputil"
	"stablehand/pkg/requestcontext"
)

// Service defines the interface for selection process operations.
type Service interface {
	PreviewTurnOrder(ctx context.Context, caller service.Caller, req service.PreviewRequest) (*turnorder.Result, error)
	Create(ctx context.Context, caller service.Caller, req *service.CreateRequest) (*models.SelectionProcess, error)
	Start(ctx context.Context, caller service.Caller, processID id.ProcessID) (*models.SelectionProcess, error)
	RecordSelection(ctx context.Context, caller service.Caller, processID id.ProcessID, instanceID id.RoutineInstanceID) (*models.SelectionEntry, error)
	CompleteTurn(ctx context.Context, caller service.Caller, processID id.ProcessID) (*models.SelectionProcess, error)
	Cancel(ctx context.Context, caller service.Caller, processID id.ProcessID) (*models.SelectionProcess, error)
	Get(ctx context.Context, caller service.Caller, processID id.ProcessID) (*projection.ProcessView, error)
	List(ctx context.Context, caller service.Caller, stableID id.StableID, status models.ProcessStatus) ([]*projection.ProcessView, error)
	ListEntries(ctx context.Context, caller service.Caller, processID id.ProcessID) ([]*models.SelectionEntry, error)
	LatestHistory(ctx context.Context, caller service.Caller, stableID id.StableID) (*models.History, error)
}

// Handler wires selection endpoints to the selection service.
type Handler struct {
	service       Service
	logger        *slog.Logger
	mutationLimit func(http.Handler) http.Handler
}

// New constructs a selection handler. mutationLimit, when set, wraps every
// state-changing route.
func New(service Service, logger *slog.Logger, mutationLimit func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		mutationLimit: mutationLimit,
	}
}

// Register mounts selection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/stables/{stableID}/selection-processes", h.HandleList)
	r.Get("/stables/{stableID}/selection-history/latest", h.HandleLatestHistory)
	r.Get("/selection-processes/{processID}", h.HandleGet)
	r.Get("/selection-processes/{processID}/entries", h.HandleListEntries)

	r.Group(func(r chi.Router) {
		if h.mutationLimit != nil {
			r.Use(h.mutationLimit)
		}
		r.Post("/stables/{stableID}/selection-processes", h.HandleCreate)
		r.Post("/stables/{stableID}/selection-processes/preview", h.HandlePreview)
		r.Post("/selection-processes/{processID}/start", h.HandleStart)
		r.Post("/selection-processes/{processID}/cancel", h.HandleCancel)
		r.Post("/selection-processes/{processID}/selections", h.HandleRecordSelection)
		r.Post("/selection-processes/{processID}/turns/complete", h.HandleCompleteTurn)
	})
}

// HandlePreview handles POST /stables/{stableID}/selection-processes/preview.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	stableID, ok := h.stableParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TurnOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.PreviewTurnOrder(ctx, caller, req.toPreview(stableID))
	if err != nil {
		h.fail(ctx, w, "turn order preview failed", err, "stable_id", stableID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCreate handles POST /stables/{stableID}/selection-processes.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	stableID, ok := h.stableParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateProcessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Create(ctx, caller, &service.CreateRequest{
		PreviewRequest: req.toPreview(stableID),
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(ctx, w, "selection process creation failed", err, "stable_id", stableID)
		return
	}

	h.logger.InfoContext(ctx, "selection process created",
		"request_id", requestID,
		"process_id", p.ID,
		"algorithm", p.Algorithm,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /stables/{stableID}/selection-processes?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	stableID, ok := h.stableParam(w, r)
	if !ok {
		return
	}
	var status models.ProcessStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseProcessStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = parsed
	}

	views, err := h.service.List(ctx, caller, stableID, status)
	if err != nil {
		h.fail(ctx, w, "selection process listing failed", err, "stable_id", stableID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListProcessesResponse{Processes: views})
}

// HandleLatestHistory handles GET /stables/{stableID}/selection-history/latest.
func (h *Handler) HandleLatestHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	stableID, ok := h.stableParam(w, r)
	if !ok {
		return
	}

	hist, err := h.service.LatestHistory(ctx, caller, stableID)
	if err != nil {
		h.fail(ctx, w, "selection history lookup failed", err, "stable_id", stableID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hist)
}

// HandleGet handles GET /selection-processes/{processID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	processID, ok := h.processParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(ctx, caller, processID)
	if err != nil {
		h.fail(ctx, w, "selection process lookup failed", err, "process_id", processID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleListEntries handles GET /selection-processes/{processID}/entries.
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	processID, ok := h.processParam(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(ctx, caller, processID)
	if err != nil {
		h.fail(ctx, w, "selection entry listing failed", err, "process_id", processID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListEntriesResponse{Entries: entries})
}

// HandleStart handles POST /selection-processes/{processID}/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", h.service.Start)
}

// HandleCancel handles POST /selection-processes/{processID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.service.Cancel)
}

// HandleCompleteTurn handles POST /selection-processes/{processID}/turns/complete.
func (h *Handler) HandleCompleteTurn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete_turn", h.service.CompleteTurn)
}

// HandleRecordSelection handles POST /selection-processes/{processID}/selections.
func (h *Handler) HandleRecordSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	processID, ok := h.processParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordSelectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.RecordSelection(ctx, caller, processID, req.parsedInstanceID)
	if err != nil {
		h.fail(ctx, w, "selection rejected", err,
			"process_id", processID,
			"routine_instance_id", req.parsedInstanceID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

type transitionFunc func(ctx context.Context, caller service.Caller, processID id.ProcessID) (*models.SelectionProcess, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	processID, ok := h.processParam(w, r)
	if !ok {
		return
	}

	p, err := fn(ctx, caller, processID)
	if err != nil {
		h.fail(ctx, w, "selection process "+action+" failed", err, "process_id", processID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	ctx := r.Context()
	caller := service.Caller{
		UserID:         requestcontext.UserID(ctx),
		OrganizationID: requestcontext.OrganizationID(ctx),
	}
	if caller.UserID.IsNil() || caller.OrganizationID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return service.Caller{}, false
	}
	return caller, true
}

func (h *Handler) stableParam(w http.ResponseWriter, r *http.Request) (id.StableID, bool) {
	stableID, err := id.ParseStableID(chi.URLParam(r, "stableID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.StableID{}, false
	}
	return stableID, true
}

func (h *Handler) processParam(w http.ResponseWriter, r *http.Request) (id.ProcessID, bool) {
	processID, err := id.ParseProcessID(chi.URLParam(r, "processID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ProcessID{}, false
	}
	return processID, true
}

// fail logs at warn for client errors and at error for internal ones.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func (r *TurnOrderRequest) toPreview(stableID id.StableID) service.PreviewRequest {
	return service.PreviewRequest{
		StableID:           stableID,
		Algorithm:          r.parsedAlgorithm,
		MemberIDs:          r.parsedMembers,
		SelectionStartDate: r.parsedStart,
		SelectionEndDate:   r.parsedEnd,
	}
}
