package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransaction(t *testing.T) {
	fnErr := errors.New("seed insert failed")
	beginErr := errors.New("connection reset")
	commitErr := errors.New("could not serialize access")
	rollbackErr := errors.New("rollback failed")

	testCases := []struct {
		name      string
		expect    func(mock sqlmock.Sqlmock)
		fn        TxFn
		wantErrIs []error
		wantMsg   string
	}{
		{
			name: "commits on success",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM harness_rows").WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, "DELETE FROM harness_rows")
				return err
			},
		},
		{
			name: "rolls back when fn fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:        func(context.Context, *sql.Tx) error { return fnErr },
			wantErrIs: []error{fnErr},
		},
		{
			name: "begin failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(beginErr)
			},
			fn:        func(context.Context, *sql.Tx) error { return nil },
			wantErrIs: []error{beginErr},
			wantMsg:   "failed to begin transaction",
		},
		{
			name: "commit failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(commitErr)
			},
			fn:        func(context.Context, *sql.Tx) error { return nil },
			wantErrIs: []error{ErrTransactionFailed, commitErr},
			wantMsg:   "commit",
		},
		{
			name: "rollback failure keeps the original error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(rollbackErr)
			},
			fn:        func(context.Context, *sql.Tx) error { return fnErr },
			wantErrIs: []error{fnErr},
			wantMsg:   "rollback failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tc.expect(mock)

			err = RunInTransaction(context.Background(), db, nil, tc.fn)

			if len(tc.wantErrIs) == 0 {
				assert.NoError(t, err)
			}
			for _, target := range tc.wantErrIs {
				assert.ErrorIs(t, err, target)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunInTransaction_Panic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "seed corrupted", func() {
		_ = RunInTransaction(context.Background(), db, nil, func(context.Context, *sql.Tx) error {
			panic("seed corrupted")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_Options(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectCommit()

	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	require.NoError(t, RunInTransaction(context.Background(), db, opts, func(context.Context, *sql.Tx) error {
		return nil
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
