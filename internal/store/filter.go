package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/aircurve/internal/ir"
)

// Filter selects evaluations from the log. Empty fields match everything;
// set fields are combined with AND.
type Filter struct {
	RunToken string
	Machine  string
	Entry    string
	Status   string // ir.StatusOK or ir.StatusError
}

// FindEvaluations returns the evaluations matching f.
// Ordering is deterministic: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) FindEvaluations(ctx context.Context, f Filter) ([]ir.Evaluation, error) {
	where, params, err := f.compile()
	if err != nil {
		return nil, err
	}
	return s.queryEvaluations(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE `+where+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, params...)
}

// compile renders the filter as a WHERE clause. Values are always bound
// as parameters, never interpolated.
func (f Filter) compile() (string, []any, error) {
	if f.Status != "" && f.Status != ir.StatusOK && f.Status != ir.StatusError {
		return "", nil, fmt.Errorf("filter: unknown status %q", f.Status)
	}

	var (
		parts  []string
		params []any
	)
	for _, c := range []struct {
		column string
		value  string
	}{
		{"run_token", f.RunToken},
		{"machine", f.Machine},
		{"entry", f.Entry},
		{"status", f.Status},
	} {
		if c.value == "" {
			continue
		}
		parts = append(parts, c.column+" = ?")
		params = append(params, c.value)
	}

	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}
