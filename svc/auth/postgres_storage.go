package auth

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ztruyen/ztc-auth/pkg/pg"
)

// Migrations holds the goose migrations for PostgresStorage under
// "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// pgxQuerier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStorage keeps accounts in the "accounts" table.
type PostgresStorage struct {
	db pgxQuerier
}

func NewPostgresStorage(db pgxQuerier) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const accountColumns = `id, email, password_hash, provider, role, refresh_token_ref,
	reset_token_hash, reset_token_expiry, name, avatar_url, avatar_id, cover_id,
	avatar_frame_id, bio, age, gender, birthday, is_deleted, deleted_at,
	created_at, updated_at`

type accountRow struct {
	ID               uuid.UUID  `db:"id"`
	Email            string     `db:"email"`
	PasswordHash     string     `db:"password_hash"`
	Provider         string     `db:"provider"`
	Role             string     `db:"role"`
	RefreshTokenRef  string     `db:"refresh_token_ref"`
	ResetTokenHash   string     `db:"reset_token_hash"`
	ResetTokenExpiry *time.Time `db:"reset_token_expiry"`
	Name             string     `db:"name"`
	AvatarURL        string     `db:"avatar_url"`
	AvatarID         string     `db:"avatar_id"`
	CoverID          string     `db:"cover_id"`
	AvatarFrameID    string     `db:"avatar_frame_id"`
	Bio              string     `db:"bio"`
	Age              int        `db:"age"`
	Gender           string     `db:"gender"`
	Birthday         *time.Time `db:"birthday"`
	IsDeleted        bool       `db:"is_deleted"`
	DeletedAt        *time.Time `db:"deleted_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *accountRow) account() *Account {
	a := &Account{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		Provider:        Provider(r.Provider),
		Role:            Role(r.Role),
		RefreshTokenRef: r.RefreshTokenRef,
		ResetTokenHash:  r.ResetTokenHash,
		Name:            r.Name,
		AvatarURL:       r.AvatarURL,
		AvatarID:        r.AvatarID,
		CoverID:         r.CoverID,
		AvatarFrameID:   r.AvatarFrameID,
		Bio:             r.Bio,
		Age:             r.Age,
		Gender:          r.Gender,
		Birthday:        r.Birthday,
		IsDeleted:       r.IsDeleted,
		DeletedAt:       r.DeletedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ResetTokenExpiry != nil {
		a.ResetTokenExpiry = *r.ResetTokenExpiry
	}
	return a
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, acc *Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO accounts (id, email, password_hash, provider, role, name, avatar_url,
			avatar_id, cover_id, avatar_frame_id, bio, age, gender, birthday)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		acc.ID, acc.Email, acc.PasswordHash, string(acc.Provider), string(acc.Role), acc.Name, acc.AvatarURL,
		acc.AvatarID, acc.CoverID, acc.AvatarFrameID, acc.Bio, acc.Age, acc.Gender, acc.Birthday,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	stamps, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[timestamps])
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	acc.CreatedAt, acc.UpdatedAt = stamps.CreatedAt, stamps.UpdatedAt
	return nil
}

func (s *PostgresStorage) AccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *PostgresStorage) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (s *PostgresStorage) SetRefreshRef(ctx context.Context, id uuid.UUID, ref string) error {
	return s.exec(ctx, ErrAccountNotFound,
		`UPDATE accounts SET refresh_token_ref = $2, updated_at = now() WHERE id = $1`, id, ref)
}

func (s *PostgresStorage) SwapRefreshRef(ctx context.Context, id uuid.UUID, expected, next string) error {
	if expected == "" {
		return ErrRefMismatch
	}
	return s.exec(ctx, ErrRefMismatch, `
		UPDATE accounts SET refresh_token_ref = $3, updated_at = now()
		WHERE id = $1 AND refresh_token_ref = $2`, id, expected, next)
}

func (s *PostgresStorage) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error {
	var exp *time.Time
	if hash != "" {
		exp = &expiry
	}
	return s.exec(ctx, ErrAccountNotFound, `
		UPDATE accounts SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = now()
		WHERE id = $1`, id, hash, exp)
}

func (s *PostgresStorage) ClearResetToken(ctx context.Context, id uuid.UUID, hash string) error {
	if hash == "" {
		return nil
	}
	return s.exec(ctx, nil, `
		UPDATE accounts SET reset_token_hash = '', reset_token_expiry = NULL, updated_at = now()
		WHERE id = $1 AND reset_token_hash = $2`, id, hash)
}

func (s *PostgresStorage) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash string) (*Account, error) {
	if hash == "" {
		return nil, ErrAccountNotFound
	}
	return s.queryAccount(ctx, `
		UPDATE accounts SET
			password_hash = $3,
			reset_token_hash = '',
			reset_token_expiry = NULL,
			refresh_token_ref = '',
			updated_at = now()
		WHERE reset_token_hash = $1 AND reset_token_expiry > $2 AND NOT is_deleted
		RETURNING `+accountColumns, hash, now, passwordHash)
}

// SoftDelete marks an account deleted and ends its session.
func (s *PostgresStorage) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, ErrAccountNotFound, `
		UPDATE accounts SET is_deleted = TRUE, deleted_at = now(), refresh_token_ref = '', updated_at = now()
		WHERE id = $1`, id)
}

func (s *PostgresStorage) queryAccount(ctx context.Context, sql string, args ...any) (*Account, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[accountRow])
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return row.account(), nil
}

// exec runs a single-row update and returns notMatched when no row changed.
func (s *PostgresStorage) exec(ctx context.Context, notMatched error, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notMatched
	}
	return nil
}

var _ Storage = (*PostgresStorage)(nil)
