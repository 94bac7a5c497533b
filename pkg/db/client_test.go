package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:                 SilentLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&testModel{Name: "dup"}).Error)
	err := db.Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "ux_whatever"))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_allocations_scope_target"}
	assert.True(t, IsUniqueViolation(pgErr, "ux_allocations_scope_target"))
	assert.False(t, IsUniqueViolation(pgErr, "ux_other"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

type scriptedRunner struct {
	errs  []error
	calls int
}

func (s *scriptedRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func TestRetryingRunner_RetriesConflicts(t *testing.T) {
	conflict := pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "version moved")
	inner := &scriptedRunner{errs: []error{conflict, conflict}}
	runner := NewRetryingRunner(inner, 3, 0)

	var retried []int
	runner.OnRetry = func(_ context.Context, attempt int, _ error) {
		retried = append(retried, attempt)
	}

	err := runner.WithTx(context.Background(), func(tx *gorm.DB) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryingRunner_GivesUpWithConflict(t *testing.T) {
	conflict := pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "version moved")
	inner := &scriptedRunner{errs: []error{conflict, conflict, conflict}}
	runner := NewRetryingRunner(inner, 1, 0)

	err := runner.WithTx(context.Background(), func(tx *gorm.DB) error { return nil })
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict))
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingRunner_DoesNotRetryOtherErrors(t *testing.T) {
	inner := &scriptedRunner{errs: []error{pkgerrors.New(pkgerrors.CodeInsufficientFunds, "no")}}
	runner := NewRetryingRunner(inner, 5, 0)

	err := runner.WithTx(context.Background(), func(tx *gorm.DB) error { return nil })
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	assert.Equal(t, 1, inner.calls)
}

func TestWithTx_MapsLockContentionToConflict(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	ctx := context.Background()

	cases := map[string]error{
		"sqlite busy":       errors.New("database is locked"),
		"postgres deadlock": &pgconn.PgError{Code: "40P01"},
		"lock timeout":      &pgconn.PgError{Code: "55P03"},
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			err := client.WithTx(ctx, func(tx *gorm.DB) error { return cause })
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict))
			assert.ErrorIs(t, err, cause)
		})
	}

	funds := pkgerrors.New(pkgerrors.CodeInsufficientFunds, "short")
	err := client.WithTx(ctx, func(tx *gorm.DB) error { return funds })
	assert.Same(t, funds, err)

	plain := errors.New("boom")
	err = client.WithTx(ctx, func(tx *gorm.DB) error { return plain })
	assert.Same(t, plain, err)
}

func TestWithTx_RetriedAfterLockContention(t *testing.T) {
	conn := newTestDB(t)
	runner := NewRetryingRunner(NewFromConn(conn), 2, 0)

	attempts := 0
	err := runner.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return tx.Create(&testModel{Name: "posted-after-retry"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Where("name = ?", "posted-after-retry").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWithTx_CanceledContext(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := client.WithTx(ctx, func(tx *gorm.DB) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
