package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	firehistory "firewatch-cloud/internal/firehistory/domain"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func TestAppendAssignsSequenceID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO fire_history`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	item := firehistory.Item{
		MarketID:       "market-1",
		MarketName:     "부평깡시장",
		ReceiverMAC:    "00:1A:2B:3C:4D:5E",
		ReceiverStatus: "화재",
		RepeaterID:     "03",
		RepeaterStatus: "화재감지",
		Class:          firehistory.ClassFire,
		Registrar:      "system",
		RegisteredAt:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		FalseAlarmStatus: firehistory.FalseAlarmRegistered,
	}
	err := repo.Append(context.Background(), &item)
	require.NoError(t, err)
	assert.Equal(t, int64(42), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM fire_history`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	item, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "market_id", "market_name", "receiver_mac", "receiver_status",
		"repeater_id", "repeater_status", "detector_chamber", "detector_temp",
		"class", "degraded", "registrar", "registered_at", "false_alarm_status", "note",
	}).AddRow(
		int64(1), "market-1", "부평깡시장", "00:1A:2B:3C:4D:5E", "화재",
		"03", "화재감지", nil, nil,
		firehistory.ClassFire, false, "system", start.Add(time.Hour), firehistory.FalseAlarmRegistered, nil,
	)

	mock.ExpectQuery(`SELECT (.+) FROM fire_history(.+)market_name LIKE(.+)class =`).
		WithArgs(start, end, "%깡시장%", firehistory.ClassFire).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), firehistory.Filter{
		Start:      start,
		End:        end,
		MarketName: "깡시장",
		FireOnly:   true,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].DetectorChamber)
	assert.Equal(t, firehistory.ClassFire, items[0].Class)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFalseAlarmReportsMiss(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE fire_history`).
		WithArgs(firehistory.FalseAlarmFalse, sqlmock.AnyArg(), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := repo.UpdateFalseAlarm(context.Background(), 9, firehistory.FalseAlarmFalse, "오탐 확인")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsOutcome(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM fire_history`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
