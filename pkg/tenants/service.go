package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/steeplehq/steeple/pkg/audit"
	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/roles"
)

// ChurchCache is the optional read-through cache for domain lookups.
// Implementations must be best-effort: a miss or failure just means
// the database is hit.
type ChurchCache interface {
	GetByDomain(ctx context.Context, domain string) (*Church, bool)
	Set(ctx context.Context, church *Church) error
	Invalidate(ctx context.Context, domain string) error
}

// ReplicaSource hands out pooled read connections, one per call.
// *storage.ConnectionManager satisfies it; when none is attached
// reads go to the primary.
type ReplicaSource interface {
	Replica() *sql.DB
}

// PostgresService implements church and membership management on
// PostgreSQL.
type PostgresService struct {
	db       *sql.DB
	replicas ReplicaSource
	recorder *audit.Recorder
	cache    ChurchCache
}

// NewPostgresService creates a new PostgresService. The recorder may
// be nil, in which case mutations are not audited.
func NewPostgresService(db *sql.DB, recorder *audit.Recorder) *PostgresService {
	return &PostgresService{db: db, recorder: recorder}
}

// WithChurchCache attaches a domain-lookup cache.
func (s *PostgresService) WithChurchCache(cache ChurchCache) *PostgresService {
	s.cache = cache
	return s
}

// WithReadReplicas routes staleness-tolerant reads (domain lookups,
// listings) through read replicas. Profile loads and the snapshots
// around mutations stay on the primary: authorization and audit diffs
// must see current state.
func (s *PostgresService) WithReadReplicas(replicas ReplicaSource) *PostgresService {
	s.replicas = replicas
	return s
}

func (s *PostgresService) reader() *sql.DB {
	if s.replicas != nil {
		return s.replicas.Replica()
	}
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// CreateChurch creates a new church. Only super admins create tenants.
func (s *PostgresService) CreateChurch(ctx context.Context, session *auth.Session, req *CreateChurchRequest) (*Church, error) {
	if session == nil || session.Role != roles.RoleSuperAdmin {
		return nil, authz.Denied("only super admins may create churches")
	}

	church := &Church{
		ID:          uuid.NewString(),
		Name:        req.Name,
		DomainName:  strings.ToLower(req.DomainName),
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Country:     req.Country,
		Email:       req.Email,
		Phone:       req.Phone,
		WebsiteURL:  req.WebsiteURL,
		LogoURL:     req.LogoURL,
	}

	query := `
		INSERT INTO churches (id, name, domain_name, description, address, city, country, email, phone, website_url, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, church.ID, church.Name, church.DomainName,
		church.Description, church.Address, church.City, church.Country,
		church.Email, church.Phone, church.WebsiteURL, church.LogoURL).
		Scan(&church.CreatedAt, &church.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDomainTaken
		}
		return nil, fmt.Errorf("failed to create church: %w", err)
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.ActionCreate, "churches", church.ID,
			session.UserID, &church.ID, nil, churchFields(church))
	}

	return church, nil
}

// GetChurch retrieves a church by ID. Always reads the primary: this
// path feeds the before/after snapshots around mutations.
func (s *PostgresService) GetChurch(ctx context.Context, id string) (*Church, error) {
	return s.getChurch(ctx, s.db, "id", id)
}

// GetChurchByDomain retrieves a church by its domain name, consulting
// the cache first when one is attached.
func (s *PostgresService) GetChurchByDomain(ctx context.Context, domain string) (*Church, error) {
	domain = strings.ToLower(domain)
	if s.cache != nil {
		if church, ok := s.cache.GetByDomain(ctx, domain); ok {
			return church, nil
		}
	}

	church, err := s.getChurch(ctx, s.reader(), "domain_name", domain)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, church)
	}
	return church, nil
}

func (s *PostgresService) getChurch(ctx context.Context, db *sql.DB, column, value string) (*Church, error) {
	query := fmt.Sprintf(`
		SELECT id, name, domain_name, description, address, city, country, email, phone, website_url, logo_url, created_at, updated_at
		FROM churches
		WHERE %s = $1
	`, column)

	church := &Church{}
	err := db.QueryRowContext(ctx, query, value).Scan(
		&church.ID, &church.Name, &church.DomainName, &church.Description,
		&church.Address, &church.City, &church.Country, &church.Email,
		&church.Phone, &church.WebsiteURL, &church.LogoURL,
		&church.CreatedAt, &church.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrChurchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get church: %w", err)
	}

	return church, nil
}

// ListChurches lists all churches. Super admin only: every other role
// is scoped to a single church and has no use for the full list.
func (s *PostgresService) ListChurches(ctx context.Context, session *auth.Session) ([]*Church, error) {
	if session == nil || session.Role != roles.RoleSuperAdmin {
		return nil, authz.Denied("only super admins may list churches")
	}

	query := `
		SELECT id, name, domain_name, description, address, city, country, email, phone, website_url, logo_url, created_at, updated_at
		FROM churches
		ORDER BY name ASC
	`
	rows, err := s.reader().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list churches: %w", err)
	}
	defer rows.Close()

	var churches []*Church
	for rows.Next() {
		church := &Church{}
		if err := rows.Scan(
			&church.ID, &church.Name, &church.DomainName, &church.Description,
			&church.Address, &church.City, &church.Country, &church.Email,
			&church.Phone, &church.WebsiteURL, &church.LogoURL,
			&church.CreatedAt, &church.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan church: %w", err)
		}
		churches = append(churches, church)
	}

	return churches, rows.Err()
}

// UpdateChurch applies a partial update to a church. The actor needs
// access to the church and the manage-church capability.
func (s *PostgresService) UpdateChurch(ctx context.Context, session *auth.Session, churchID string, updates *UpdateChurchRequest) (*Church, error) {
	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		return nil, err
	}
	if err := authz.RequireCapability(session, roles.CapManageChurch); err != nil {
		return nil, err
	}

	before, err := s.GetChurch(ctx, churchID)
	if err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	addClause := func(column string, value *string) {
		if value == nil {
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, *value)
		argPos++
	}

	addClause("name", updates.Name)
	addClause("description", updates.Description)
	addClause("address", updates.Address)
	addClause("city", updates.City)
	addClause("country", updates.Country)
	addClause("email", updates.Email)
	addClause("phone", updates.Phone)
	addClause("website_url", updates.WebsiteURL)
	addClause("logo_url", updates.LogoURL)

	if len(setClauses) == 0 {
		return before, nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, churchID)
	query := fmt.Sprintf("UPDATE churches SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update church: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrChurchNotFound
	}

	after, err := s.GetChurch(ctx, churchID)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.ActionUpdate, "churches", churchID,
			session.UserID, &churchID, churchFields(before), churchFields(after))
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, before.DomainName)
	}

	return after, nil
}

// DeleteChurch removes a church. Super admin only.
func (s *PostgresService) DeleteChurch(ctx context.Context, session *auth.Session, churchID string) error {
	if session == nil || session.Role != roles.RoleSuperAdmin {
		return authz.Denied("only super admins may delete churches")
	}

	prior, err := s.GetChurch(ctx, churchID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM churches WHERE id = $1`, churchID)
	if err != nil {
		return fmt.Errorf("failed to delete church: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrChurchNotFound
	}

	if s.recorder != nil {
		s.recorder.RecordDeletion(ctx, "churches", churchID,
			session.UserID, &churchID, churchFields(prior))
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, prior.DomainName)
	}

	return nil
}

// churchFields flattens a church into an audit-comparable map.
func churchFields(c *Church) map[string]interface{} {
	return map[string]interface{}{
		"name":        c.Name,
		"domain_name": c.DomainName,
		"description": c.Description,
		"address":     c.Address,
		"city":        c.City,
		"country":     c.Country,
		"email":       c.Email,
		"phone":       c.Phone,
		"website_url": c.WebsiteURL,
		"logo_url":    c.LogoURL,
	}
}
