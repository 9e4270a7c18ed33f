package db

import (
	"testing"
	"time"
)

func TestStatementTimeoutSQL(t *testing.T) {
	got := statementTimeoutSQL(1500 * time.Millisecond)
	if got != "SET LOCAL statement_timeout = 1500" {
		t.Fatalf("unexpected statement: %s", got)
	}
}
