package membership

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

// newTestStore opens an in-memory SQLite database with the same shape as the
// production schema. SQLite accepts the $N placeholders the store emits, so
// the exact production queries run unmodified.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE organization_members (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		invited_by TEXT,
		joined_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (organization_id, user_id)
	);
	CREATE TABLE assets (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		assigned_to TEXT,
		status TEXT
	);
	CREATE TABLE events (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		assigned_to TEXT,
		status TEXT
	);
	CREATE TABLE maintenance_records (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		assigned_to TEXT,
		status TEXT
	);
	CREATE TABLE audit_records (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		auditor_id TEXT
	);`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return NewPostgresStore(db)
}

func addTestMember(t *testing.T, store *PostgresStore, orgID, userID string, role authz.Role) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.AddMember(context.Background(), &Membership{
		ID:             userID + "-" + orgID,
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         StatusActive,
		JoinedAt:       now,
	}))
}

func TestActiveRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addTestMember(t, store, "o1", "u1", authz.RoleManager)

	role, err := store.ActiveRole(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, role)

	_, err = store.ActiveRole(ctx, "u1", "o2")
	assert.ErrorIs(t, err, authz.ErrNoMembership)

	// An inactive membership reads the same as a missing one.
	require.NoError(t, store.SetMemberStatus(ctx, "o1", "u1", StatusInactive))
	_, err = store.ActiveRole(ctx, "u1", "o1")
	assert.ErrorIs(t, err, authz.ErrNoMembership)
}

func TestOwnershipFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	db := store.db

	_, err := db.Exec(`INSERT INTO assets (id, organization_id, assigned_to, status) VALUES
		('asset-1', 'o1', 'u1', 'in_use'),
		('asset-2', 'o1', NULL, 'available'),
		('asset-3', 'o2', 'u1', 'in_use')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO audit_records (id, organization_id, auditor_id) VALUES
		('audit-1', 'o1', 'u9')`)
	require.NoError(t, err)

	own, err := store.OwnershipFields(ctx, authz.EntityAssets, "asset-1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.Ownership{AssignedTo: "u1", Status: "in_use"}, own)

	own, err = store.OwnershipFields(ctx, authz.EntityAssets, "asset-2", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.Ownership{Status: "available"}, own)

	// Another organization's asset does not exist from o1's point of view.
	_, err = store.OwnershipFields(ctx, authz.EntityAssets, "asset-3", "o1")
	assert.ErrorIs(t, err, authz.ErrNotFound)

	_, err = store.OwnershipFields(ctx, authz.EntityAssets, "ghost", "o1")
	assert.ErrorIs(t, err, authz.ErrNotFound)

	// audit_records carry an auditor but no status.
	own, err = store.OwnershipFields(ctx, authz.EntityAuditRecords, "audit-1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.Ownership{AssignedTo: "u9"}, own)

	_, err = store.OwnershipFields(ctx, authz.EntityType("vendors"), "v1", "o1")
	assert.Error(t, err)
}

func TestAddMemberDuplicate(t *testing.T) {
	store := newTestStore(t)
	addTestMember(t, store, "o1", "u1", authz.RoleMember)

	err := store.AddMember(context.Background(), &Membership{
		ID:             "other-id",
		OrganizationID: "o1",
		UserID:         "u1",
		Role:           authz.RoleAdmin,
		Status:         StatusActive,
		JoinedAt:       time.Now().UTC(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestGetAndListMembers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addTestMember(t, store, "o1", "u1", authz.RoleOwner)
	addTestMember(t, store, "o1", "u2", authz.RoleMember)
	addTestMember(t, store, "o2", "u1", authz.RoleViewer)

	m, err := store.GetMember(ctx, "o1", "u2")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, m.Role)
	assert.Equal(t, StatusActive, m.Status)

	_, err = store.GetMember(ctx, "o1", "ghost")
	assert.ErrorIs(t, err, authz.ErrNoMembership)

	members, err := store.ListMembers(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, members, 2)

	members, err = store.ListMembers(ctx, "o3")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestUpdateRoleAndStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addTestMember(t, store, "o1", "u1", authz.RoleMember)

	require.NoError(t, store.UpdateMemberRole(ctx, "o1", "u1", authz.RoleManager))
	role, err := store.ActiveRole(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, role)

	assert.ErrorIs(t, store.UpdateMemberRole(ctx, "o1", "ghost", authz.RoleAdmin), authz.ErrNoMembership)
	assert.ErrorIs(t, store.SetMemberStatus(ctx, "o1", "ghost", StatusInactive), authz.ErrNoMembership)
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addTestMember(t, store, "o1", "u1", authz.RoleMember)

	require.NoError(t, store.RemoveMember(ctx, "o1", "u1"))
	_, err := store.GetMember(ctx, "o1", "u1")
	assert.ErrorIs(t, err, authz.ErrNoMembership)

	assert.ErrorIs(t, store.RemoveMember(ctx, "o1", "u1"), authz.ErrNoMembership)
}

func TestActiveRoleQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT role FROM organization_members").
		WillReturnError(errors.New("connection reset"))

	store := NewPostgresStore(db)
	_, err = store.ActiveRole(context.Background(), "u1", "o1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, authz.ErrNoMembership)
	assert.NoError(t, mock.ExpectationsWereMet())
}
