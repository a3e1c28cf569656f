package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/turnorder"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/sentinel"
)

const gatherTimeout = 5 * time.Second

// orderInputs is what the algorithms read besides the member list.
type orderInputs struct {
	stats     map[id.UserID]models.MemberStats
	instances []models.RoutineInstance
	previous  *models.History
}

func (s *Service) computeTurnOrder(ctx context.Context, caller Caller, req PreviewRequest) (*turnorder.Result, error) {
	members, err := s.members.ResolveMembers(ctx, caller.OrganizationID, req.StableID, req.MemberIDs)
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve members")
	}

	inputs, err := s.gatherInputs(ctx, caller, req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather turn order inputs")
	}

	result, err := turnorder.Compute(turnorder.Input{
		Algorithm:       req.Algorithm,
		Members:         members,
		StartDate:       req.SelectionStartDate,
		EndDate:         req.SelectionEndDate,
		Stats:           inputs.stats,
		Instances:       inputs.instances,
		PreviousHistory: inputs.previous,
		Policy:          s.policy,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	return result, nil
}

// gatherInputs fetches only what the chosen algorithm reads, in parallel,
// cancelling the rest on the first failure.
func (s *Service) gatherInputs(ctx context.Context, caller Caller, req PreviewRequest) (*orderInputs, error) {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	inputs := &orderInputs{}

	switch req.Algorithm {
	case models.AlgorithmQuotaBased:
		g.Go(func() error {
			stats, err := s.members.MemberStats(ctx, req.StableID, req.MemberIDs, req.SelectionStartDate, req.SelectionEndDate)
			if err != nil {
				return err
			}
			inputs.stats = stats
			return nil
		})
		g.Go(func() error {
			instances, err := s.routines.ListInstances(ctx, req.StableID, req.SelectionStartDate, req.SelectionEndDate)
			if err != nil {
				return err
			}
			inputs.instances = instances
			return nil
		})
	case models.AlgorithmPointsBalance:
		g.Go(func() error {
			stats, err := s.members.MemberStats(ctx, req.StableID, req.MemberIDs, req.SelectionStartDate, req.SelectionEndDate)
			if err != nil {
				return err
			}
			inputs.stats = stats
			return nil
		})
	case models.AlgorithmFairRotation:
		g.Go(func() error {
			h, err := s.histories.FindLatestByStable(ctx, caller.OrganizationID, req.StableID)
			if err != nil {
				// first rotation for this stable
				if errors.Is(err, sentinel.ErrNotFound) {
					return nil
				}
				return err
			}
			inputs.previous = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}
