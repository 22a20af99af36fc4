package query

import (
	"fmt"
	"strings"
)

// Condition is a single field equality test.
type Condition struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Value: value}
}

// Clause is a disjunction of conditions. A clause with a single condition is
// a plain equality filter.
type Clause struct {
	Any []Condition `json:"any"`
}

// Spec is an immutable query specification for a single table.
type Spec struct {
	table   string
	clauses []Clause
}

// New creates an empty Spec for the given table.
func New(table string) Spec {
	return Spec{table: table}
}

// Table returns the table the Spec targets.
func (s Spec) Table() string { return s.table }

// Clauses returns a copy of the Spec's clauses.
func (s Spec) Clauses() []Clause {
	out := make([]Clause, len(s.clauses))
	for i, c := range s.clauses {
		out[i] = Clause{Any: append([]Condition(nil), c.Any...)}
	}
	return out
}

// Equals returns a new Spec with an additional equality clause.
func (s Spec) Equals(field string, value any) Spec {
	return s.append(Clause{Any: []Condition{{Field: field, Value: value}}})
}

// Or returns a new Spec with an additional disjunctive clause. Calling Or with
// no conditions returns the Spec unchanged.
func (s Spec) Or(conditions ...Condition) Spec {
	if len(conditions) == 0 {
		return s
	}
	return s.append(Clause{Any: append([]Condition(nil), conditions...)})
}

func (s Spec) append(c Clause) Spec {
	clauses := make([]Clause, 0, len(s.clauses)+1)
	clauses = append(clauses, s.clauses...)
	clauses = append(clauses, c)
	return Spec{table: s.table, clauses: clauses}
}

// HasClause reports whether the Spec contains a clause exactly matching the
// given conditions, in order.
func (s Spec) HasClause(conditions ...Condition) bool {
	for _, c := range s.clauses {
		if len(c.Any) != len(conditions) {
			continue
		}
		match := true
		for i, cond := range conditions {
			if c.Any[i] != cond {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// SQL renders the Spec as a SELECT statement with positional placeholders and
// returns the bind arguments. Execution belongs to the data layer; this is a
// convenience for SQL-backed consumers.
func (s Spec) SQL(columns ...string) (string, []any) {
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, s.table)

	var args []any
	n := 0
	for i, clause := range s.clauses {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if len(clause.Any) > 1 {
			b.WriteString("(")
		}
		for j, cond := range clause.Any {
			if j > 0 {
				b.WriteString(" OR ")
			}
			n++
			fmt.Fprintf(&b, "%s = $%d", cond.Field, n)
			args = append(args, cond.Value)
		}
		if len(clause.Any) > 1 {
			b.WriteString(")")
		}
	}
	return b.String(), args
}
