package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) error { return &pgconn.PgError{Code: code, Message: "pg"} }

func TestDBErrorCode(t *testing.T) {
	cases := []struct {
		code string
		want ErrorCode
	}{
		{pgErrUniqueViolation, ErrorCodeDuplicateKey},
		{pgErrForeignKeyViolation, ErrorCodeInvalidArgument},
		{pgErrNotNullViolation, ErrorCodeValidation},
		{pgErrCheckViolation, ErrorCodeValidation},
		{pgErrInvalidTextRepresentation, ErrorCodeInvalidArgument},
		{pgErrSerializationFailure, ErrorCodeDB},
		{pgErrCannotConnectNow, ErrorCodeUnavailable},
		{"XX000", ErrorCodeDB},
	}
	for _, c := range cases {
		got, ok := DBErrorCode(pgErr(c.code))
		if !ok || got != c.want {
			t.Fatalf("DBErrorCode(%s) = %v/%v, want %v", c.code, got, ok, c.want)
		}
	}

	if _, ok := DBErrorCode(fmt.Errorf("not a pg error")); ok {
		t.Fatal("foreign error should report !ok")
	}
}

func TestFromPostgres(t *testing.T) {
	if FromPostgres(nil, "x") != nil {
		t.Fatal("nil should stay nil")
	}

	err := FromPostgres(pgErr(pgErrUniqueViolation), "insert relation")
	if !IsCode(err, ErrorCodeDuplicateKey) {
		t.Fatalf("code = %v, want DuplicateKey", CodeOf(err))
	}
	if !IsDuplicateKey(err) {
		t.Fatal("IsDuplicateKey should see through the wrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(pgErr(pgErrDeadlockDetected)) {
		t.Fatal("deadlock should be retryable")
	}
	if !IsRetryable(pgErr(pgErrCannotConnectNow)) {
		t.Fatal("cannot-connect should be retryable")
	}
	if IsRetryable(pgErr(pgErrUniqueViolation)) {
		t.Fatal("duplicate key should not be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Fatal("local cancellation should not be retryable")
	}
	if !IsRetryable(fmt.Errorf("dial tcp: connection refused")) {
		t.Fatal("connection refused text should be retryable")
	}
}
