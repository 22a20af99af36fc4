package query

import (
	"reflect"
	"testing"
)

func TestSpecImmutability(t *testing.T) {
	base := New("assets").Equals("organization_id", "org-1")

	a := base.Equals("status", "available")
	b := base.Or(Eq("assigned_to", "user-1"), Eq("status", "available"))

	if len(base.Clauses()) != 1 {
		t.Fatalf("base spec mutated: %d clauses", len(base.Clauses()))
	}
	if len(a.Clauses()) != 2 || len(b.Clauses()) != 2 {
		t.Fatalf("derived specs have wrong clause counts: %d, %d", len(a.Clauses()), len(b.Clauses()))
	}
	if a.HasClause(Eq("assigned_to", "user-1"), Eq("status", "available")) {
		t.Fatal("clause from b leaked into a")
	}
	if !b.HasClause(Eq("assigned_to", "user-1"), Eq("status", "available")) {
		t.Fatal("b is missing its disjunctive clause")
	}
}

func TestSpecOrEmptyIsNoop(t *testing.T) {
	s := New("events").Equals("organization_id", "org-1")
	if got := s.Or(); len(got.Clauses()) != 1 {
		t.Fatalf("Or() with no conditions added a clause: %d", len(got.Clauses()))
	}
}

func TestSpecSQL(t *testing.T) {
	s := New("assets").
		Equals("organization_id", "org-1").
		Or(Eq("assigned_to", "user-1"), Eq("status", "available"))

	sql, args := s.SQL("id", "name")
	want := "SELECT id, name FROM assets WHERE organization_id = $1 AND (assigned_to = $2 OR status = $3)"
	if sql != want {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"org-1", "user-1", "available"}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSpecSQLNoClauses(t *testing.T) {
	sql, args := New("events").SQL()
	if sql != "SELECT * FROM events" {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if len(args) != 0 {
		t.Fatalf("unexpected args: %v", args)
	}
}
