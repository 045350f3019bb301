package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"vibration-monitor/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresSnapshotStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock, NewPostgresSnapshotStore(db, zap.NewNop())
}

func TestPostgresSnapshotStore_EnsureSchema(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS device_countdown_defaults`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS device_countdowns`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_LoadCountdowns(t *testing.T) {
	_, mock, store := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"device_id", "end_timestamp", "last_penalty_check"}).
		AddRow("Pompa1/Vibration", 1700000000.25, 0.0).
		AddRow("Pompa3/Vibration", 1700500000.0, 1690000000.0)
	mock.ExpectQuery(`SELECT device_id, end_timestamp, last_penalty_check FROM device_countdowns`).WillReturnRows(rows)

	records, err := store.LoadCountdowns(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1700000000.25, records["Pompa1/Vibration"].EndTimestamp)
	assert.Equal(t, 1690000000.0, records["Pompa3/Vibration"].LastPenaltyCheck)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_LoadDefaults(t *testing.T) {
	_, mock, store := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"device_id", "seconds"}).AddRow("Pompa1/Vibration", int64(86400))
	mock.ExpectQuery(`SELECT device_id, seconds FROM device_countdown_defaults`).WillReturnRows(rows)

	defaults, err := store.LoadDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Pompa1/Vibration": 86400}, defaults)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_SaveCountdowns(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM device_countdowns`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO device_countdowns`).
		WithArgs("Pompa1/Vibration", 1700000000.0, 0.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.SaveCountdowns(context.Background(), map[string]models.CountdownRecord{
		"Pompa1/Vibration": {EndTimestamp: 1700000000},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_SaveDefaultsRollsBackOnError(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM device_countdown_defaults`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO device_countdown_defaults`).
		WithArgs("Pompa1/Vibration", int64(60)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveDefaults(context.Background(), map[string]int64{"Pompa1/Vibration": 60})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
