package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"stablehand/internal/selection/handler/mocks"
	"stablehand/internal/selection/models"
	"stablehand/internal/selection/projection"
	"stablehand/internal/selection/service"
	"stablehand/internal/selection/turnorder"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler

	user    id.UserID
	org     id.OrganizationID
	stable  id.StableID
	process id.ProcessID
	caller  service.Caller
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.service, logger, nil).Register(r)
	s.router = r

	s.user = id.UserID(uuid.New())
	s.org = id.OrganizationID(uuid.New())
	s.stable = id.StableID(uuid.New())
	s.process = id.ProcessID(uuid.New())
	s.caller = service.Caller{UserID: s.user, OrganizationID: s.org}
}

// do sends req as the suite's authenticated caller.
func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithAuth(req, s.user.String(), s.org.String()))
}

func (s *HandlerSuite) stablePath(suffix string) string {
	return "/stables/" + s.stable.String() + "/selection-processes" + suffix
}

func (s *HandlerSuite) processPath(suffix string) string {
	return "/selection-processes/" + s.process.String() + suffix
}

func (s *HandlerSuite) sampleProcess(status models.ProcessStatus) *models.SelectionProcess {
	return &models.SelectionProcess{
		ID:             s.process,
		OrganizationID: s.org,
		StableID:       s.stable,
		Name:           "May rota",
		Algorithm:      models.AlgorithmManual,
		Status:         status,
		Turns: []models.Turn{
			{UserID: s.user, UserName: "Alice", Order: 1, Status: models.TurnStatusPending},
		},
	}
}

func (s *HandlerSuite) TestCreate() {
	member := id.UserID(uuid.New())
	body := map[string]any{
		"name":                 "  May rota ",
		"algorithm":            "manual",
		"member_ids":           []string{member.String()},
		"selection_start_date": "2026-05-01",
		"selection_end_date":   "2026-05-14",
	}

	s.Run("creates a process from a valid body", func() {
		s.service.EXPECT().
			Create(gomock.Any(), s.caller, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ service.Caller, req *service.CreateRequest) (*models.SelectionProcess, error) {
				s.Equal(s.stable, req.StableID)
				s.Equal("May rota", req.Name)
				s.Equal(models.AlgorithmManual, req.Algorithm)
				s.Equal([]id.UserID{member}, req.MemberIDs)
				s.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), req.SelectionStartDate)
				s.Equal(time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), req.SelectionEndDate)
				return s.sampleProcess(models.ProcessStatusDraft), nil
			})

		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath(""), body))

		testutil.AssertStatus(s.T(), rec, http.StatusCreated)
		resp := testutil.UnmarshalResponse[models.SelectionProcess](s.T(), rec)
		s.Equal(s.process, resp.ID)
		s.Equal(models.ProcessStatusDraft, resp.Status)
	})

	s.Run("rejects unauthenticated callers", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath(""), body))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("rejects unknown fields", func() {
		withExtra := map[string]any{"name": "x", "quota": 3}
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath(""), withExtra))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("rejects an unknown algorithm before reaching the service", func() {
		bad := map[string]any{
			"name":                 "May rota",
			"algorithm":            "lottery",
			"member_ids":           []string{member.String()},
			"selection_start_date": "2026-05-01",
			"selection_end_date":   "2026-05-14",
		}
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath(""), bad))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("rejects a malformed stable ID", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/stables/not-a-uuid/selection-processes", body))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("maps forbidden from the service", func() {
		s.service.EXPECT().Create(gomock.Any(), s.caller, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only stable managers can create selection processes"))

		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath(""), body))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func (s *HandlerSuite) TestPreview() {
	member := id.UserID(uuid.New())
	s.service.EXPECT().
		PreviewTurnOrder(gomock.Any(), s.caller, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ service.Caller, req service.PreviewRequest) (*turnorder.Result, error) {
			s.Equal(models.AlgorithmQuotaBased, req.Algorithm)
			return &turnorder.Result{
				Algorithm:      models.AlgorithmQuotaBased,
				Entries:        []turnorder.OrderedMember{{Member: models.Member{UserID: member, Name: "Bob"}, Order: 1}},
				QuotaPerMember: 7,
			}, nil
		})

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.stablePath("/preview"), map[string]any{
		"algorithm":            "quota_based",
		"member_ids":           []string{member.String()},
		"selection_start_date": "2026-05-01T00:00:00Z",
		"selection_end_date":   "2026-05-14",
	}))
	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[turnorder.Result](s.T(), rr)
	s.Equal(7, resp.QuotaPerMember)
	s.Len(resp.Entries, 1)
}

func (s *HandlerSuite) TestTransitions() {
	s.Run("start", func() {
		s.service.EXPECT().Start(gomock.Any(), s.caller, s.process).
			Return(s.sampleProcess(models.ProcessStatusActive), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.processPath("/start")))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.SelectionProcess](s.T(), rr)
		s.Equal(models.ProcessStatusActive, resp.Status)
	})

	s.Run("start on an active process conflicts", func() {
		s.service.EXPECT().Start(gomock.Any(), s.caller, s.process).
			Return(nil, dErrors.New(dErrors.CodeInvalidState, "process is not in draft"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.processPath("/start")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidState))
	})

	s.Run("complete turn out of order is forbidden", func() {
		s.service.EXPECT().CompleteTurn(gomock.Any(), s.caller, s.process).
			Return(nil, dErrors.New(dErrors.CodeNotYourTurn, "it is not your turn"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.processPath("/turns/complete")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeNotYourTurn))
	})

	s.Run("cancel of a foreign process is not found", func() {
		s.service.EXPECT().Cancel(gomock.Any(), s.caller, s.process).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "selection process not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.processPath("/cancel")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("malformed process ID", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/selection-processes/123/start"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *HandlerSuite) TestRecordSelection() {
	instance := id.RoutineInstanceID(uuid.New())

	s.Run("records a selection", func() {
		s.service.EXPECT().RecordSelection(gomock.Any(), s.caller, s.process, instance).
			Return(&models.SelectionEntry{
				ID:                id.EntryID(uuid.New()),
				ProcessID:         s.process,
				RoutineInstanceID: instance,
				SelectedBy:        s.user,
				Sequence:          1,
				PointsValue:       3,
			}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.processPath("/selections"),
			map[string]string{"routine_instance_id": instance.String()}))
		s.Equal(http.StatusCreated, rr.Code)
		resp := testutil.UnmarshalResponse[models.SelectionEntry](s.T(), rr)
		s.Equal(instance, resp.RoutineInstanceID)
		s.Equal(1, resp.Sequence)
	})

	s.Run("already selected conflicts", func() {
		s.service.EXPECT().RecordSelection(gomock.Any(), s.caller, s.process, instance).
			Return(nil, dErrors.New(dErrors.CodeAlreadySelected, "routine instance already selected"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.processPath("/selections"),
			map[string]string{"routine_instance_id": instance.String()}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeAlreadySelected))
	})

	s.Run("missing routine instance ID", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.processPath("/selections"), map[string]string{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestReads() {
	s.Run("get returns the caller's view", func() {
		view := projection.View(s.sampleProcess(models.ProcessStatusDraft), s.user, true)
		s.service.EXPECT().Get(gomock.Any(), s.caller, s.process).Return(view, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.processPath("")))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[projection.ProcessView](s.T(), rr)
		s.True(resp.UserContext.CanManage)
		s.Equal(s.process, resp.ID)
	})

	s.Run("list passes the status filter", func() {
		s.service.EXPECT().List(gomock.Any(), s.caller, s.stable, models.ProcessStatusActive).
			Return([]*projection.ProcessView{projection.View(s.sampleProcess(models.ProcessStatusActive), s.user, false)}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.stablePath("?status=active")))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ListProcessesResponse](s.T(), rr)
		s.Len(resp.Processes, 1)
	})

	s.Run("list rejects an unknown status", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.stablePath("?status=paused")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("entries are wrapped", func() {
		s.service.EXPECT().ListEntries(gomock.Any(), s.caller, s.process).
			Return([]*models.SelectionEntry{{ProcessID: s.process, Sequence: 1}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.processPath("/entries")))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ListEntriesResponse](s.T(), rr)
		s.Require().Len(resp.Entries, 1)
		s.Equal(1, resp.Entries[0].Sequence)
	})

	s.Run("latest history not found", func() {
		s.service.EXPECT().LatestHistory(gomock.Any(), s.caller, s.stable).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no selection history for this stable"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/stables/"+s.stable.String()+"/selection-history/latest"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Get(gomock.Any(), s.caller, s.process).
			Return(nil, dErrors.Wrap(io.ErrUnexpectedEOF, dErrors.CodeInternal, "failed to load selection process"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.processPath("")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
		s.NotContains(rr.Body.String(), "failed to load")
	})
}

func (s *HandlerSuite) TestMutationLimitOnlyWrapsWrites() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reject := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r := chi.NewRouter()
	New(s.service, logger, reject).Register(r)
	s.router = r

	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.processPath("/start")))
	s.Equal(http.StatusTooManyRequests, rr.Code)

	s.service.EXPECT().ListEntries(gomock.Any(), s.caller, s.process).Return(nil, nil)
	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, s.processPath("/entries")))
	s.Equal(http.StatusOK, rr.Code)
}
