package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ghxstship/atlvs-sub007/pkg/authz"
)

// ConnectionConfig holds database pool configuration.
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open connects to PostgreSQL and verifies the connection.
func Open(cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ownershipTable maps each entity type to the table and columns its
// ownership attributes live in. audit_records has no status column; its
// override never applies, but not_found detection still does.
type ownershipTable struct {
	table       string
	assignedCol string
	statusCol   string
}

var ownershipTables = map[authz.EntityType]ownershipTable{
	authz.EntityAssets:       {table: "assets", assignedCol: "assigned_to", statusCol: "status"},
	authz.EntityEvents:       {table: "events", assignedCol: "assigned_to", statusCol: "status"},
	authz.EntityMaintenance:  {table: "maintenance_records", assignedCol: "assigned_to", statusCol: "status"},
	authz.EntityAuditRecords: {table: "audit_records", assignedCol: "auditor_id"},
}

// PostgresStore implements Store over PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ActiveRole implements Store. The status filter lives in the query so an
// inactive membership is indistinguishable from a missing one.
func (s *PostgresStore) ActiveRole(ctx context.Context, userID, orgID string) (authz.Role, error) {
	var role authz.Role
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM organization_members
		WHERE user_id = $1 AND organization_id = $2 AND status = $3
	`, userID, orgID, StatusActive).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", authz.ErrNoMembership
	}
	if err != nil {
		return "", fmt.Errorf("lookup membership: %w", err)
	}
	return role, nil
}

// OwnershipFields implements Store. Both id and organization appear in the
// WHERE clause; a row in another organization is simply not found.
func (s *PostgresStore) OwnershipFields(ctx context.Context, entity authz.EntityType, resourceID, orgID string) (authz.Ownership, error) {
	t, ok := ownershipTables[entity]
	if !ok {
		return authz.Ownership{}, fmt.Errorf("unknown entity type %q", entity)
	}

	var (
		own      authz.Ownership
		assigned sql.NullString
		status   sql.NullString
		err      error
	)
	if t.statusCol != "" {
		q := fmt.Sprintf(
			"SELECT %s, %s FROM %s WHERE id = $1 AND organization_id = $2",
			t.assignedCol, t.statusCol, t.table,
		)
		err = s.db.QueryRowContext(ctx, q, resourceID, orgID).Scan(&assigned, &status)
	} else {
		q := fmt.Sprintf(
			"SELECT %s FROM %s WHERE id = $1 AND organization_id = $2",
			t.assignedCol, t.table,
		)
		err = s.db.QueryRowContext(ctx, q, resourceID, orgID).Scan(&assigned)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Ownership{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Ownership{}, fmt.Errorf("lookup ownership: %w", err)
	}
	if assigned.Valid {
		own.AssignedTo = assigned.String
	}
	if status.Valid {
		own.Status = status.String
	}
	return own, nil
}

// GetMember returns a membership regardless of status.
func (s *PostgresStore) GetMember(ctx context.Context, orgID, userID string) (*Membership, error) {
	m := &Membership{}
	var invitedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status,
		&invitedBy, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authz.ErrNoMembership
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if invitedBy.Valid {
		m.InvitedBy = invitedBy.String
	}
	return m, nil
}

// ListMembers returns all memberships of an organization.
func (s *PostgresStore) ListMembers(ctx context.Context, orgID string) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		var invitedBy sql.NullString
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status,
			&invitedBy, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if invitedBy.Valid {
			m.InvitedBy = invitedBy.String
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts a membership. Duplicate (organization, user) pairs fail.
func (s *PostgresStore) AddMember(ctx context.Context, m *Membership) error {
	var invitedBy any
	if m.InvitedBy != "" {
		invitedBy = m.InvitedBy
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, status, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, m.ID, m.OrganizationID, m.UserID, m.Role, m.Status, invitedBy, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// UpdateMemberRole changes a member's role.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	return s.execOne(ctx, `
		UPDATE organization_members SET role = $1, updated_at = CURRENT_TIMESTAMP
		WHERE organization_id = $2 AND user_id = $3
	`, role, orgID, userID)
}

// SetMemberStatus activates or deactivates a membership.
func (s *PostgresStore) SetMemberStatus(ctx context.Context, orgID, userID, status string) error {
	return s.execOne(ctx, `
		UPDATE organization_members SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE organization_id = $2 AND user_id = $3
	`, status, orgID, userID)
}

// RemoveMember deletes a membership.
func (s *PostgresStore) RemoveMember(ctx context.Context, orgID, userID string) error {
	return s.execOne(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
}

func (s *PostgresStore) execOne(ctx context.Context, q string, args ...any) error {
	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if affected == 0 {
		return authz.ErrNoMembership
	}
	return nil
}
