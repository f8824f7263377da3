package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *stubTx) Commit(_ context.Context) error {
	tx.committed = true
	return tx.commitErr
}

func (tx *stubTx) Rollback(_ context.Context) error {
	tx.rolledBack = true
	return nil
}

type stubBeginner struct {
	txs   []*stubTx
	begun int
}

func (b *stubBeginner) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	tx := &stubTx{}
	if b.begun < len(b.txs) {
		tx = b.txs[b.begun]
	}
	b.begun++
	return tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	tx := &stubTx{}
	db := &stubBeginner{txs: []*stubTx{tx}}

	if err := WithTx(context.Background(), db, pgx.TxOptions{}, func(pgx.Tx) error { return nil }); err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if !tx.committed {
		t.Fatalf("expected commit")
	}
}

func TestWithTxDoesNotCommitOnError(t *testing.T) {
	tx := &stubTx{}
	db := &stubBeginner{txs: []*stubTx{tx}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, pgx.TxOptions{}, func(pgx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback without commit, got %+v", tx)
	}
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	db := &stubBeginner{}
	calls := 0

	err := WithTx(context.Background(), db, Serializable, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	db := &stubBeginner{}
	calls := 0

	err := WithTx(context.Background(), db, Serializable, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if !IsSerializationFailure(err) {
		t.Fatalf("expected serialization failure, got %v", err)
	}
	if calls != maxSerializableAttempts {
		t.Fatalf("expected %d attempts, got %d", maxSerializableAttempts, calls)
	}
}

func TestWithTxDoesNotRetryReadCommitted(t *testing.T) {
	db := &stubBeginner{}
	calls := 0

	_ = WithTx(context.Background(), db, pgx.TxOptions{}, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
