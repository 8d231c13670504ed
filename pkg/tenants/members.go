package tenants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steeplehq/steeple/pkg/audit"
	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/roles"
)

// GetProfile retrieves the profile linked to a user ID. It satisfies
// auth.ProfileStore, so the session resolver reads through this
// service. Always reads the primary: a revoked role must take effect
// on the next request, not after replication lag.
func (s *PostgresService) GetProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	query := `
		SELECT user_id, church_id, role, status, display_name, avatar_url, email, last_active_at, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	profile := &auth.Profile{}
	var churchID sql.NullString
	var displayName, avatarURL, email sql.NullString
	var lastActiveAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &churchID, &profile.Role, &profile.Status,
		&displayName, &avatarURL, &email, &lastActiveAt,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if churchID.Valid {
		profile.ChurchID = &churchID.String
	}
	profile.DisplayName = displayName.String
	profile.AvatarURL = avatarURL.String
	profile.Email = email.String
	if lastActiveAt.Valid {
		profile.LastActiveAt = &lastActiveAt.Time
	}

	return profile, nil
}

// TouchLastActive stamps the profile's last activity time. Missing
// profiles are ignored: activity tracking must never fail a request.
func (s *PostgresService) TouchLastActive(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET last_active_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to touch last active: %w", err)
	}
	return nil
}

const memberColumns = `user_id, church_id, role, status, display_name, email, avatar_url, last_active_at, created_at`

func scanMember(scan func(dest ...interface{}) error) (*Member, error) {
	member := &Member{}
	var storageRole roles.StorageRole
	var displayName, email, avatarURL sql.NullString
	var lastActiveAt sql.NullTime

	if err := scan(
		&member.UserID, &member.ChurchID, &storageRole, &member.Status,
		&displayName, &email, &avatarURL, &lastActiveAt, &member.CreatedAt,
	); err != nil {
		return nil, err
	}

	member.Role = roles.FromStorage(string(storageRole))
	member.DisplayName = displayName.String
	member.Email = email.String
	member.AvatarURL = avatarURL.String
	if lastActiveAt.Valid {
		member.LastActiveAt = &lastActiveAt.Time
	}

	return member, nil
}

// ListMembers retrieves all members of a church. Requires church
// access and the view-members capability.
func (s *PostgresService) ListMembers(ctx context.Context, session *auth.Session, churchID string) ([]*Member, error) {
	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		return nil, err
	}
	if err := authz.RequireCapability(session, roles.CapViewMembers); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM profiles
		WHERE church_id = $1
		ORDER BY created_at ASC
	`, memberColumns)

	rows, err := s.reader().QueryContext(ctx, query, churchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetMember retrieves one member of a church.
func (s *PostgresService) GetMember(ctx context.Context, churchID, userID string) (*Member, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM profiles
		WHERE church_id = $1 AND user_id = $2
	`, memberColumns)

	member, err := scanMember(s.db.QueryRowContext(ctx, query, churchID, userID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// UpdateMemberRole changes a member's role. The actor must have church
// access, the manage-members capability, and must strictly outrank
// both the member's current role and the requested role. The requested
// role is validated strictly: unknown names are rejected, never
// degraded to visitor.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, session *auth.Session, churchID, userID, requestedRole string) (*Member, error) {
	newRole, err := roles.ParseRole(requestedRole)
	if err != nil {
		return nil, err
	}

	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		return nil, err
	}
	if err := authz.RequireCapability(session, roles.CapManageMembers); err != nil {
		return nil, err
	}

	target, err := s.GetMember(ctx, churchID, userID)
	if err != nil {
		return nil, err
	}

	if err := authz.RequireCanManage(session, target.Role); err != nil {
		return nil, err
	}
	if err := authz.RequireCanManage(session, newRole); err != nil {
		return nil, err
	}

	if target.Role == newRole {
		return target, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET role = $1, updated_at = NOW() WHERE church_id = $2 AND user_id = $3`,
		roles.ToStorage(newRole), churchID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrMemberNotFound
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.ActionUpdateRole, "profiles", userID,
			session.UserID, &churchID,
			map[string]interface{}{"role": string(target.Role)},
			map[string]interface{}{"role": string(newRole)})
	}

	target.Role = newRole
	return target, nil
}

// UpdateMemberStatus changes a member's lifecycle status.
func (s *PostgresService) UpdateMemberStatus(ctx context.Context, session *auth.Session, churchID, userID string, status auth.ProfileStatus) (*Member, error) {
	switch status {
	case auth.StatusActive, auth.StatusPending, auth.StatusInactive:
	default:
		return nil, &roles.ValidationError{Field: "status", Value: string(status)}
	}

	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		return nil, err
	}
	if err := authz.RequireCapability(session, roles.CapManageMembers); err != nil {
		return nil, err
	}

	target, err := s.GetMember(ctx, churchID, userID)
	if err != nil {
		return nil, err
	}

	if err := authz.RequireCanManage(session, target.Role); err != nil {
		return nil, err
	}

	if target.Status == status {
		return target, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET status = $1, updated_at = NOW() WHERE church_id = $2 AND user_id = $3`,
		status, churchID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrMemberNotFound
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.ActionUpdateStatus, "profiles", userID,
			session.UserID, &churchID,
			map[string]interface{}{"status": string(target.Status)},
			map[string]interface{}{"status": string(status)})
	}

	target.Status = status
	return target, nil
}

// RemoveMember detaches a member from the church. The profile itself
// survives with no church and the visitor role, so the user can be
// re-invited later.
func (s *PostgresService) RemoveMember(ctx context.Context, session *auth.Session, churchID, userID string) error {
	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		return err
	}
	if err := authz.RequireCapability(session, roles.CapManageMembers); err != nil {
		return err
	}

	target, err := s.GetMember(ctx, churchID, userID)
	if err != nil {
		return err
	}

	if err := authz.RequireCanManage(session, target.Role); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET church_id = NULL, role = $1, updated_at = NOW() WHERE church_id = $2 AND user_id = $3`,
		roles.StorageVisitor, churchID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.ActionRemoveMember, "profiles", userID,
			session.UserID, &churchID,
			map[string]interface{}{
				"church_id": churchID,
				"role":      string(target.Role),
				"status":    string(target.Status),
			},
			map[string]interface{}{
				"church_id": nil,
				"role":      string(roles.RoleVisitor),
			})
	}

	return nil
}
