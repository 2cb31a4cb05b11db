// Package postgres is a PrincipalStore over database/sql and the pgx driver.
//
// Lookups return soft-deleted principals with DeletedAt set; the engine
// rejects them. Deleted memberships and services are excluded from the join.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/tenantauth/internal/domain"
)

//go:embed schema.sql
var Schema string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const principalSelect = `
	select
		u.uuid, u.username, u.email, u.password_hash, coalesce(r.name, ''),
		u.is_active, u.mfa_enabled, coalesce(u.mfa_secret, ''), u.deleted_at,
		s.uuid, s.name, s.description, s.is_active,
		m.is_active, br.name
	from users u
	left join roles r on r.id = u.role_id
	left join service_memberships m on m.user_uuid = u.uuid and m.deleted_at is null
	left join services s on s.uuid = m.service_uuid and s.deleted_at is null
	left join business_roles br on br.id = m.business_role_id
`

type Store struct {
	db *sql.DB
}

var _ domain.PrincipalStore = (*Store)(nil)

// Open connects with the pgx stdlib driver and tunes the pool.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies Schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *Store) PrincipalByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	return s.queryPrincipal(ctx, principalSelect+` where u.username = $1`, username)
}

func (s *Store) PrincipalByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return s.queryPrincipal(ctx, principalSelect+` where lower(u.email) = lower($1)`, email)
}

func (s *Store) PrincipalByUUID(ctx context.Context, uuid string) (*domain.Principal, error) {
	return s.queryPrincipal(ctx, principalSelect+` where u.uuid = $1`, uuid)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, uuid, hash string) error {
	return s.exec(ctx, `update users set password_hash = $2, updated_at = now() where uuid = $1`, uuid, hash)
}

// UpdateMFA stores secret whenever it is set, including a pending enrollment
// with enabled false. An empty secret clears the column.
func (s *Store) UpdateMFA(ctx context.Context, uuid string, enabled bool, secret string) error {
	stored := sql.NullString{String: secret, Valid: secret != ""}
	return s.exec(ctx, `update users set mfa_enabled = $2, mfa_secret = $3, updated_at = now() where uuid = $1`, uuid, enabled, stored)
}

// CreatePrincipal resolves the global role by name. An unknown role leaves
// role_id null.
func (s *Store) CreatePrincipal(ctx context.Context, p domain.Principal) (*domain.Principal, error) {
	if p.UUID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		p.UUID = id.String()
	}
	secret := sql.NullString{String: p.MFASecret, Valid: p.MFASecret != ""}
	err := s.exec(ctx, `
		insert into users (uuid, role_id, username, email, password_hash, is_active, mfa_enabled, mfa_secret)
		values ($1, (select id from roles where name = $2), $3, $4, $5, $6, $7, $8)`,
		p.UUID, string(p.Role), p.Username, p.Email, p.PasswordHash, p.IsActive, p.MFAEnabled, secret)
	if err != nil {
		return nil, err
	}
	p.Memberships = nil
	p.DeletedAt = nil
	return &p, nil
}

// UpdateProfile skips soft-deleted rows, which then report domain.ErrNotFound.
func (s *Store) UpdateProfile(ctx context.Context, uuid string, u domain.ProfileUpdate) error {
	return s.exec(ctx, `
		update users set
			username = coalesce(nullif($2, ''), username),
			email = coalesce(nullif($3, ''), email),
			updated_at = now()
		where uuid = $1 and deleted_at is null`,
		uuid, u.Username, u.Email)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) queryPrincipal(ctx context.Context, query string, arg string) (*domain.Principal, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var p *domain.Principal
	for rows.Next() {
		var (
			row         domain.Principal
			role        string
			deletedAt   sql.NullTime
			serviceID   sql.NullString
			serviceName sql.NullString
			description sql.NullString
			serviceOn   sql.NullBool
			memberOn    sql.NullBool
			memberRole  sql.NullString
		)
		if err := rows.Scan(
			&row.UUID, &row.Username, &row.Email, &row.PasswordHash, &role,
			&row.IsActive, &row.MFAEnabled, &row.MFASecret, &deletedAt,
			&serviceID, &serviceName, &description, &serviceOn,
			&memberOn, &memberRole,
		); err != nil {
			return nil, err
		}
		if p == nil {
			row.Role = domain.GlobalRole(role)
			if deletedAt.Valid {
				at := deletedAt.Time
				row.DeletedAt = &at
			}
			p = &row
		}
		if serviceID.Valid {
			p.Memberships = append(p.Memberships, domain.ServiceMembership{
				ServiceID:     serviceID.String,
				ServiceName:   serviceName.String,
				Description:   description.String,
				Role:          memberRole.String,
				MemberActive:  memberOn.Bool,
				ServiceActive: serviceOn.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return errors.Join(domain.ErrConflict, err)
		}
	}
	return err
}
