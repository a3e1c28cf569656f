package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/projection"
	"stablehand/internal/selection/turnorder"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/audit"
	"stablehand/pkg/platform/sentinel"
	"stablehand/pkg/requestcontext"
)

// PreviewTurnOrder computes the queue a process would get without saving it.
func (s *Service) PreviewTurnOrder(ctx context.Context, caller Caller, req PreviewRequest) (result *turnorder.Result, err error) {
	ctx, done := s.track(ctx, "preview",
		attribute.String("stable_id", req.StableID.String()),
		attribute.String("algorithm", req.Algorithm.String()))
	defer done(&err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, caller, req.StableID, "preview a turn order"); err != nil {
		return nil, err
	}
	return s.computeTurnOrder(ctx, caller, req)
}

// Create computes the turn order and stores a draft process.
func (s *Service) Create(ctx context.Context, caller Caller, req *CreateRequest) (p *models.SelectionProcess, err error) {
	ctx, done := s.track(ctx, "create",
		attribute.String("stable_id", req.StableID.String()),
		attribute.String("algorithm", req.Algorithm.String()))
	defer done(&err)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, caller, req.StableID, "create a selection process"); err != nil {
		return nil, err
	}

	order, err := s.computeTurnOrder(ctx, caller, req.PreviewRequest)
	if err != nil {
		return nil, err
	}

	// Use constructor which validates invariants
	p, err = models.NewSelectionProcess(models.NewProcessParams{
		ID:                   id.ProcessID(uuid.New()),
		OrganizationID:       caller.OrganizationID,
		StableID:             req.StableID,
		Name:                 req.Name,
		Description:          req.Description,
		SelectionStartDate:   req.SelectionStartDate,
		SelectionEndDate:     req.SelectionEndDate,
		Algorithm:            order.Algorithm,
		NewMemberPlacement:   order.NewMemberPlacement,
		QuotaPerMember:       order.QuotaPerMember,
		TotalAvailablePoints: order.TotalAvailablePoints,
		Turns:                order.Turns(),
		CreatedBy:            caller.UserID,
		Now:                  requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translateStoreError(err, "failed to build selection process")
	}

	err = s.runInProcessTx(ctx, p.ID, func(ctx context.Context) error {
		if err := s.processes.Create(ctx, p); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "selection process already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create selection process")
		}
		s.logAudit(ctx, audit.EventProcessCreated, processEvent(p, caller.UserID),
			"process_id", p.ID,
			"stable_id", p.StableID,
			"user_id", caller.UserID,
			"algorithm", p.Algorithm,
			"members", len(p.Turns),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementProcessCreated(p.Algorithm.String())
	return p, nil
}

// Start moves a draft process to active and hands the first turn out.
func (s *Service) Start(ctx context.Context, caller Caller, processID id.ProcessID) (p *models.SelectionProcess, err error) {
	ctx, done := s.track(ctx, "start", attribute.String("process_id", processID.String()))
	defer done(&err)

	current, err := s.loadOwned(ctx, caller, processID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, caller, current.StableID, "start a selection process"); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.runInProcessTx(ctx, processID, func(ctx context.Context) error {
		var err error
		p, err = s.processes.Execute(ctx, processID,
			func(p *models.SelectionProcess) error { return p.CanStart() },
			func(p *models.SelectionProcess) { p.ApplyStart(now, caller.UserID) },
		)
		if err != nil {
			return translateStoreError(err, "failed to start selection process")
		}
		event := processEvent(p, caller.UserID)
		event.Details = map[string]any{"current_turn_user_id": p.CurrentTurnUserID.String()}
		s.logAudit(ctx, audit.EventProcessStarted, event,
			"process_id", p.ID,
			"user_id", caller.UserID,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementTransition(p.Status.String())
	return p, nil
}

// RecordSelection appends the caller's pick to the ledger and counts it
// against their turn. It never advances the turn.
func (s *Service) RecordSelection(ctx context.Context, caller Caller, processID id.ProcessID, instanceID id.RoutineInstanceID) (entry *models.SelectionEntry, err error) {
	ctx, done := s.track(ctx, "record_selection",
		attribute.String("process_id", processID.String()),
		attribute.String("routine_instance_id", instanceID.String()))
	defer func() {
		if err != nil {
			s.metrics.IncrementSelectionRejected(string(dErrors.CodeOf(err)))
		}
		done(&err)
	}()

	current, err := s.loadOwned(ctx, caller, processID)
	if err != nil {
		return nil, err
	}

	// loaded up front; checked under the lock after the turn checks
	instance, instanceErr := s.routines.GetInstance(ctx, instanceID)
	if instanceErr != nil && !errors.Is(instanceErr, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(instanceErr, dErrors.CodeInternal, "failed to load routine instance")
	}

	now := requestcontext.Now(ctx)
	err = s.runInProcessTx(ctx, processID, func(ctx context.Context) error {
		p, err := s.processes.Execute(ctx, processID,
			func(p *models.SelectionProcess) error {
				if err := p.CanRecordSelection(caller.UserID); err != nil {
					return err
				}
				if instanceErr != nil {
					return dErrors.New(dErrors.CodeValidation, "routine instance not found")
				}
				if instance.StableID != current.StableID || instance.OrganizationID != current.OrganizationID {
					return dErrors.New(dErrors.CodeValidation, "routine instance belongs to a different stable")
				}
				if !p.InSelectionPeriod(instance.ScheduledDate) {
					return dErrors.New(dErrors.CodeValidation, "routine instance is outside the selection period")
				}
				existing, err := s.entries.FindByInstance(ctx, processID, instanceID)
				if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check selection ledger")
				}
				if existing != nil {
					return dErrors.New(dErrors.CodeAlreadySelected, "routine instance has already been selected")
				}
				// The ledger is written from a projected copy before the
				// process counters move, so a failed append changes nothing.
				projected := p.Clone()
				selectedAt := projected.ApplySelection(instance.PointsValue, now, caller.UserID)
				entry, err = models.NewSelectionEntry(id.EntryID(uuid.New()), projected, instanceID, instance.PointsValue, selectedAt)
				if err != nil {
					return err
				}
				if err := s.entries.Append(ctx, entry); err != nil {
					if errors.Is(err, sentinel.ErrAlreadyUsed) {
						return dErrors.New(dErrors.CodeAlreadySelected, "routine instance has already been selected")
					}
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append selection entry")
				}
				return nil
			},
			func(p *models.SelectionProcess) {
				p.ApplySelection(instance.PointsValue, now, caller.UserID)
			},
		)
		if err != nil {
			return translateStoreError(err, "failed to record selection")
		}

		event := processEvent(p, caller.UserID)
		event.Details = map[string]any{
			"routine_instance_id": instanceID.String(),
			"points":              entry.PointsValue,
			"sequence":            entry.Sequence,
		}
		s.logAudit(ctx, audit.EventSelectionRecorded, event,
			"process_id", processID,
			"user_id", caller.UserID,
			"routine_instance_id", instanceID,
			"sequence", entry.Sequence,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementSelectionRecorded()
	return entry, nil
}

// CompleteTurn ends the caller's turn. The last turn completes the process
// and hands it to the archiver after commit.
func (s *Service) CompleteTurn(ctx context.Context, caller Caller, processID id.ProcessID) (p *models.SelectionProcess, err error) {
	ctx, done := s.track(ctx, "complete_turn", attribute.String("process_id", processID.String()))
	defer done(&err)

	if _, err := s.loadOwned(ctx, caller, processID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var completed bool
	err = s.runInProcessTx(ctx, processID, func(ctx context.Context) error {
		var err error
		p, err = s.processes.Execute(ctx, processID,
			func(p *models.SelectionProcess) error { return p.CanCompleteTurn(caller.UserID) },
			func(p *models.SelectionProcess) { completed = p.ApplyCompleteTurn(now, caller.UserID) },
		)
		if err != nil {
			return translateStoreError(err, "failed to complete turn")
		}
		s.logAudit(ctx, audit.EventTurnCompleted, processEvent(p, caller.UserID),
			"process_id", processID,
			"user_id", caller.UserID,
		)
		if completed {
			s.logAudit(ctx, audit.EventProcessCompleted, processEvent(p, caller.UserID),
				"process_id", processID,
				"user_id", caller.UserID,
				"selections", p.TotalSelections(),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.metrics.IncrementTransition(p.Status.String())
		if s.archiver != nil {
			s.archiver.Submit(ctx, processID)
		}
	}
	return p, nil
}

// Cancel terminates a draft or active process. No history is written.
func (s *Service) Cancel(ctx context.Context, caller Caller, processID id.ProcessID) (p *models.SelectionProcess, err error) {
	ctx, done := s.track(ctx, "cancel", attribute.String("process_id", processID.String()))
	defer done(&err)

	current, err := s.loadOwned(ctx, caller, processID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, caller, current.StableID, "cancel a selection process"); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.runInProcessTx(ctx, processID, func(ctx context.Context) error {
		var err error
		p, err = s.processes.Execute(ctx, processID,
			func(p *models.SelectionProcess) error { return p.CanCancel() },
			func(p *models.SelectionProcess) { p.ApplyCancel(now, caller.UserID) },
		)
		if err != nil {
			return translateStoreError(err, "failed to cancel selection process")
		}
		s.logAudit(ctx, audit.EventProcessCancelled, processEvent(p, caller.UserID),
			"process_id", processID,
			"user_id", caller.UserID,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementTransition(p.Status.String())
	return p, nil
}

// Get returns the process with the caller's context computed on the fly.
func (s *Service) Get(ctx context.Context, caller Caller, processID id.ProcessID) (view *projection.ProcessView, err error) {
	ctx, done := s.track(ctx, "get", attribute.String("process_id", processID.String()))
	defer done(&err)

	p, err := s.loadOwned(ctx, caller, processID)
	if err != nil {
		return nil, err
	}
	canManage, err := s.members.CanManage(ctx, caller.OrganizationID, p.StableID, caller.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check stable permissions")
	}
	return projection.View(p, caller.UserID, canManage), nil
}

// List returns the stable's processes, newest first.
func (s *Service) List(ctx context.Context, caller Caller, stableID id.StableID, status models.ProcessStatus) (views []*projection.ProcessView, err error) {
	ctx, done := s.track(ctx, "list", attribute.String("stable_id", stableID.String()))
	defer done(&err)

	processes, err := s.processes.List(ctx, models.ListFilter{
		OrganizationID: caller.OrganizationID,
		StableID:       stableID,
		Status:         status,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list selection processes")
	}
	canManage, err := s.members.CanManage(ctx, caller.OrganizationID, stableID, caller.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check stable permissions")
	}

	views = make([]*projection.ProcessView, 0, len(processes))
	for _, p := range processes {
		views = append(views, projection.View(p, caller.UserID, canManage))
	}
	return views, nil
}

// ListEntries returns the process ledger in selection order.
func (s *Service) ListEntries(ctx context.Context, caller Caller, processID id.ProcessID) (entries []*models.SelectionEntry, err error) {
	ctx, done := s.track(ctx, "list_entries", attribute.String("process_id", processID.String()))
	defer done(&err)

	if _, err := s.loadOwned(ctx, caller, processID); err != nil {
		return nil, err
	}
	entries, err = s.entries.ListByProcess(ctx, processID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list selection entries")
	}
	return entries, nil
}

// LatestHistory returns the most recently completed process archive of a stable.
func (s *Service) LatestHistory(ctx context.Context, caller Caller, stableID id.StableID) (h *models.History, err error) {
	ctx, done := s.track(ctx, "latest_history", attribute.String("stable_id", stableID.String()))
	defer done(&err)

	h, err = s.histories.FindLatestByStable(ctx, caller.OrganizationID, stableID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no selection history for this stable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load selection history")
	}
	return h, nil
}
