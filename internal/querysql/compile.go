// Package querysql compiles tag queries to parameterized SQLite over the
// refs table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/refmesh/internal/queryir"
)

// SQLCompiler compiles queryir queries to SQLite.
//
// CRITICAL: every SELECT ends in an ORDER BY with a binary collation so
// results are deterministic.
// CRITICAL: all values are parameterized, never interpolated.
type SQLCompiler struct {
	// Table is the refs table name or alias the predicates refer to.
	Table string
}

// NewSQLCompiler creates a compiler over the "refs" table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "refs"}
}

// Compile converts q to a WHERE clause fragment and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.All:
		return "1 = 1", nil, nil
	case queryir.Tag:
		return c.compileTag(query)
	case queryir.Origin:
		return c.compileOrigin(query)
	case queryir.Not:
		sql, params, err := c.Compile(query.Query)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case queryir.And:
		if len(query.Queries) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		return c.compileJoined(query.Queries, " AND ")
	case queryir.Or:
		if len(query.Queries) == 0 {
			return "1 = 0", nil, nil
		}
		return c.compileJoined(query.Queries, " OR ")
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// CompileSelect builds the full statement listing the refs stored under
// origin that match q, ordered by url.
func (c *SQLCompiler) CompileSelect(origin string, q queryir.Query) (string, []any, error) {
	where, params, err := c.Compile(q)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT doc, version, synced_version FROM %s WHERE %s.origin = ? AND (%s) ORDER BY %s",
		c.Table, c.Table, where, c.stableOrderKey())
	return sql, append([]any{origin}, params...), nil
}

// stableOrderKey returns the ORDER BY clause for a ref listing.
// COLLATE BINARY keeps text ordering independent of the SQLite build.
func (c *SQLCompiler) stableOrderKey() string {
	return c.Table + ".url COLLATE BINARY ASC"
}

// compileTag matches a tag or any of its descendants among the ref's tags.
// Tags are ASCII, so substr lengths are byte lengths.
func (c *SQLCompiler) compileTag(t queryir.Tag) (string, []any, error) {
	if t.Tag == "" {
		return "", nil, fmt.Errorf("empty tag")
	}
	child := t.Tag + "/"
	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM json_each(%s.doc, '$.tags') AS t WHERE t.value = ? OR substr(t.value, 1, ?) = ?)",
		c.Table)
	return sql, []any{t.Tag, len(child), child}, nil
}

// compileOrigin matches an origin or one nested beneath it.
func (c *SQLCompiler) compileOrigin(o queryir.Origin) (string, []any, error) {
	if o.Origin == "" {
		return "", nil, fmt.Errorf("empty origin")
	}
	nested := o.Origin + "."
	sql := fmt.Sprintf("(%s.origin = ? OR substr(%s.origin, 1, ?) = ?)", c.Table, c.Table)
	return sql, []any{o.Origin, len(nested), nested}, nil
}

func (c *SQLCompiler) compileJoined(queries []queryir.Query, sep string) (string, []any, error) {
	var (
		parts  []string
		params []any
	)
	for _, q := range queries {
		sql, p, err := c.Compile(q)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	return strings.Join(parts, sep), params, nil
}
