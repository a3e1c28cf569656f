package membership

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

func TestPostgres_ResolveMembersKeepsRequestOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ana, ben := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT user_id, display_name, email").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "email"}).
			AddRow(ana.String(), "Ana", "ana@example.com").
			AddRow(ben.String(), "Ben", ""))

	got, err := NewPostgres(db).ResolveMembers(context.Background(),
		id.OrganizationID(uuid.New()), id.StableID(uuid.New()),
		[]id.UserID{id.UserID(ben), id.UserID(ana)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ben", got[0].Name)
	assert.Equal(t, "Ana", got[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ResolveMembersRejectsUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT user_id, display_name, email").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "email"}))

	_, err = NewPostgres(db).ResolveMembers(context.Background(),
		id.OrganizationID(uuid.New()), id.StableID(uuid.New()),
		[]id.UserID{id.UserID(uuid.New())})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestPostgres_MemberStatsDefaultsToZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	known, fresh := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM member_stats").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total", "current"}).AddRow(known.String(), 12, 3))

	got, err := NewPostgres(db).MemberStats(context.Background(), id.StableID(uuid.New()),
		[]id.UserID{id.UserID(known), id.UserID(fresh)}, testDay(1), testDay(7))
	require.NoError(t, err)
	assert.Equal(t, 12, got[id.UserID(known)].TotalPoints)
	assert.Equal(t, 3, got[id.UserID(known)].CurrentPeriodPoints)
	assert.Zero(t, got[id.UserID(fresh)].TotalPoints)
}

func testDay(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}
