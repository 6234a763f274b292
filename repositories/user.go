package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"

	_ "github.com/lib/pq"
)

// UserRepository reads the user records owned by the profile service.
// The chat core only loads them and flips the online flag.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return UserRepository{db: db}
}

func (u UserRepository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(128) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'user',
			tier VARCHAR(32) NOT NULL DEFAULT 'member',
			age INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			online BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_online ON users(online) WHERE online`,
	}
	for _, migration := range migrations {
		if _, err := u.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (u UserRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	var role, tier string
	err := u.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, tier, age, active, online
		FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.DisplayName, &role, &tier, &user.Age, &user.Active, &user.Online)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	user.Tier = domain.Tier(tier)
	return user, nil
}

func (u UserRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	_, err := u.db.ExecContext(ctx, `
		UPDATE users SET online = $2, last_seen_at = NOW()
		WHERE id = $1`, userID, online)
	return err
}

// SaveUser is used by seeding tools and tests.
func (u UserRepository) SaveUser(ctx context.Context, user domain.User) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, role, tier, age, active, online)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET display_name = $2, role = $3, tier = $4, age = $5, active = $6`,
		user.ID, user.DisplayName, string(user.Role), string(user.Tier), user.Age, user.Active, user.Online)
	return err
}
