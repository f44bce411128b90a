package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query runs a SurrealQL statement and decodes its first result set into a
// slice of T. A statement producing no result sets yields nil, nil.
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// QueryOne runs a statement expected to produce at most one row, such as the
// CREATE ... RETURN AFTER the message store appends with. A SELECT without
// an explicit LIMIT gets LIMIT 1 appended so the database stops at the first
// match. nil, nil means no row matched.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	if isSelect(query) && !hasLimitClause(query) {
		query += " LIMIT 1"
	}

	rows, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

func hasLimitClause(query string) bool {
	query = " " + strings.ToUpper(query) + " "
	return strings.Contains(query, " LIMIT ")
}
