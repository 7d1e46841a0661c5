// Package sqlxrepos implements the identity repository against Postgres.
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core/user"
)

type identityRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	LoginID      string         `db:"login_id"`
	Email        sql.NullString `db:"email"`
	Phone        sql.NullString `db:"phone"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (row identityRow) toIdentity() user.Identity {
	usr := user.Identity{
		ID:           row.ID,
		Name:         row.Name,
		LoginID:      row.LoginID,
		Email:        row.Email.String,
		Phone:        row.Phone.String,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time
	}
	return usr
}

type identityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sql.DB) user.Repository {
	return &identityRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *identityRepository) get(ctx context.Context, query string, args ...interface{}) (user.Identity, error) {
	var row identityRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.Identity{}, user.ErrNotFound
		}
		return user.Identity{}, errors.Wrap(err, "querying identity")
	}
	return row.toIdentity(), nil
}

func (repo *identityRepository) CheckUniqueness(ctx context.Context, loginID, email string, excluded ...user.Identity) error {
	query := `SELECT id, login_id, email FROM identity WHERE (login_id = $1 OR email = $2)`
	var rows []identityRow
	if err := repo.db.SelectContext(ctx, &rows, query, loginID, email); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
outer:
	for _, row := range rows {
		for _, ex := range excluded {
			if ex.ID == row.ID {
				continue outer
			}
		}
		if loginID != "" && row.LoginID == loginID {
			return user.ErrLoginIDExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, usr user.Identity) (user.Identity, error) {
	query := `
		INSERT INTO identity (id, name, login_id, email, phone, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`
	if _, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.LoginID, usr.Email, usr.Phone, usr.Role,
		usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	); err != nil {
		return user.Identity{}, errors.Wrap(err, "inserting identity")
	}
	return usr, nil
}

func (repo *identityRepository) QueryAllIdentities(ctx context.Context) ([]user.Identity, error) {
	var rows []identityRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM identity ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying identities")
	}
	users := make([]user.Identity, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toIdentity())
	}
	return users, nil
}

func (repo *identityRepository) GetIdentityByID(ctx context.Context, id string) (user.Identity, error) {
	return repo.get(ctx, `SELECT * FROM identity WHERE id = $1`, id)
}

func (repo *identityRepository) GetIdentityByEmail(ctx context.Context, email string) (user.Identity, error) {
	return repo.get(ctx, `SELECT * FROM identity WHERE email = $1`, email)
}

func (repo *identityRepository) GetIdentityByLoginIDOrEmail(ctx context.Context, identifier string) (user.Identity, error) {
	return repo.get(ctx, `SELECT * FROM identity WHERE login_id = $1 OR email = $1`, identifier)
}

// FindOrCreateParent relies on the partial unique index on (phone) for
// role = 'PARENT': the insert either wins or surfaces the winner's row.
// A deactivated match is reactivated; the phone remains the identity key.
func (repo *identityRepository) FindOrCreateParent(ctx context.Context, phone string, usr user.Identity) (user.Identity, bool, error) {
	existing, err := repo.getParentByPhone(ctx, phone)
	if err == nil {
		return existing, false, nil
	}
	if errors.Cause(err) != user.ErrNotFound {
		return user.Identity{}, false, err
	}

	query := `
		INSERT INTO identity (id, name, login_id, email, phone, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
		ON CONFLICT (phone) WHERE role = 'PARENT' DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.LoginID, usr.Email, usr.Phone, usr.Role,
		usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.Identity{}, false, errors.Wrap(err, "inserting parent identity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// lost the race; return the winner
		existing, err := repo.getParentByPhone(ctx, phone)
		return existing, false, err
	}
	return usr, true, nil
}

// getParentByPhone returns the one PARENT row holding the phone, reactivating
// it first when it was deactivated.
func (repo *identityRepository) getParentByPhone(ctx context.Context, phone string) (user.Identity, error) {
	existing, err := repo.get(ctx,
		`SELECT * FROM identity WHERE role = 'PARENT' AND phone = $1`, phone)
	if err != nil {
		return user.Identity{}, err
	}
	if !existing.IsActive {
		if _, err := repo.db.ExecContext(ctx,
			`UPDATE identity SET is_active = true WHERE id = $1`, existing.ID,
		); err != nil {
			return user.Identity{}, errors.Wrap(err, "reactivating parent identity")
		}
		existing.IsActive = true
	}
	return existing, nil
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, usr user.Identity, isActive *bool) (user.Identity, error) {
	query := `
		UPDATE identity SET
			name = COALESCE(NULLIF($2, ''), name),
			login_id = COALESCE(NULLIF($3, ''), login_id),
			email = COALESCE(NULLIF($4, ''), email),
			phone = COALESCE(NULLIF($5, ''), phone),
			role = COALESCE(NULLIF($6, ''), role),
			password_hash = COALESCE($7, password_hash),
			is_active = COALESCE($8, is_active),
			updated_at = $9
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.LoginID, usr.Email, usr.Phone, usr.Role,
		usr.PasswordHash, isActive, usr.UpdatedAt,
	)
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "updating identity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.Identity{}, user.ErrNotFound
	}
	return repo.GetIdentityByID(ctx, usr.ID)
}

func (repo *identityRepository) SetLastLogin(ctx context.Context, usr user.Identity) (user.Identity, error) {
	if _, err := repo.db.ExecContext(ctx,
		`UPDATE identity SET last_login = $2 WHERE id = $1`, usr.ID, time.Now().UTC(),
	); err != nil {
		return user.Identity{}, errors.Wrap(err, "setting last login")
	}
	return repo.GetIdentityByID(ctx, usr.ID)
}
