package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core/csql"
	"github.com/relabs-tech/workfit/core/logger"
)

// PostgresStore is the Store on a postgres database
type PostgresStore struct {
	db       *csql.DB
	user     string
	friend   string
	schedule string
	recipe   string
}

// NewPostgresStore creates the tables of the backend if they do not exist yet
func NewPostgresStore(db *csql.DB) (*PostgresStore, error) {
	s := &PostgresStore{
		db:       db,
		user:     db.Table("user"),
		friend:   db.Table("user/friend"),
		schedule: db.Table("user/schedule"),
		recipe:   db.Table("user/recipe"),
	}
	logger.Default().Debugln("create tables in schema", db.Schema)
	for _, query := range []string{
		`CREATE table IF NOT EXISTS ` + s.user + `
(user_id uuid NOT NULL PRIMARY KEY,
name varchar NOT NULL,
email varchar NOT NULL UNIQUE,
password_hash bytea NOT NULL,
friend_id varchar UNIQUE,
profile_complete boolean NOT NULL DEFAULT false,
properties json NOT NULL DEFAULT '{}'::json,
image_key varchar NOT NULL DEFAULT '',
created_at timestamp NOT NULL DEFAULT now()
);`,
		`CREATE table IF NOT EXISTS ` + s.friend + `
(user_id uuid NOT NULL REFERENCES ` + s.user + ` (user_id) ON DELETE CASCADE,
friend_id varchar NOT NULL,
created_at timestamp NOT NULL DEFAULT clock_timestamp(),
PRIMARY KEY(user_id, friend_id)
);`,
		`CREATE table IF NOT EXISTS ` + s.schedule + `
(user_id uuid NOT NULL REFERENCES ` + s.user + ` (user_id) ON DELETE CASCADE,
date date NOT NULL,
program_name varchar NOT NULL,
exercises json NOT NULL DEFAULT '[]'::json,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(user_id, date)
);`,
		`CREATE table IF NOT EXISTS ` + s.recipe + `
(user_id uuid NOT NULL REFERENCES ` + s.user + ` (user_id) ON DELETE CASCADE,
recipe_id varchar NOT NULL,
properties json NOT NULL,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(user_id, recipe_id)
);`,
	} {
		if _, err := db.Exec(query); err != nil {
			return nil, fmt.Errorf("cannot create table: %w", err)
		}
	}
	return s, nil
}

// Ping verifies the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.user+`
(user_id, name, email, password_hash, profile_complete, created_at) VALUES($1,$2,$3,$4,$5,$6);`,
		user.UserID, user.Name, user.Email, user.PasswordHash, user.ProfileComplete, user.CreatedAt)
	if csql.IsUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", user.Email, ErrConflict)
	}
	return err
}

const userColumns = `user_id, name, email, password_hash, COALESCE(friend_id, ''), profile_complete, properties, image_key, created_at`

func (s *PostgresStore) queryUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	var (
		user       User
		properties json.RawMessage
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM `+s.user+` WHERE `+where+`=$1;`, arg).Scan(
		&user.UserID, &user.Name, &user.Email, &user.PasswordHash, &user.FriendID,
		&user.ProfileComplete, &properties, &user.ImageKey, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(properties, &user.Profile); err != nil {
		return nil, fmt.Errorf("invalid profile of user %s: %w", user.UserID, err)
	}
	return &user, nil
}

// UserByID returns the user with userID
func (s *PostgresStore) UserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.queryUser(ctx, "user_id", userID)
}

// UserByEmail returns the user with email
func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, "email", email)
}

// UserByFriendID returns the user with friendID
func (s *PostgresStore) UserByFriendID(ctx context.Context, friendID string) (*User, error) {
	return s.queryUser(ctx, "friend_id", friendID)
}

func notFoundIfNone(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile stores the profile, sets the friend ID and marks the profile complete
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID uuid.UUID, friendID string, profile Profile) error {
	properties, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+s.user+`
SET friend_id=$2, properties=$3, profile_complete=true WHERE user_id=$1;`,
		userID, friendID, string(properties))
	if csql.IsUniqueViolation(err) {
		return fmt.Errorf("friend id %s: %w", friendID, ErrConflict)
	}
	return notFoundIfNone(res, err)
}

// SetImageKey records the key of the profile image
func (s *PostgresStore) SetImageKey(ctx context.Context, userID uuid.UUID, key string) error {
	return notFoundIfNone(s.db.ExecContext(ctx,
		`UPDATE `+s.user+` SET image_key=$2 WHERE user_id=$1;`, userID, key))
}

// AddFriend appends friendID to the friends of the user
func (s *PostgresStore) AddFriend(ctx context.Context, userID uuid.UUID, friendID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.friend+` (user_id, friend_id) VALUES($1,$2);`, userID, friendID)
	if csql.IsUniqueViolation(err) {
		return fmt.Errorf("friend %s: %w", friendID, ErrConflict)
	}
	return err
}

// Friends returns the friend IDs of the user in insertion order
func (s *PostgresStore) Friends(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT friend_id FROM `+s.friend+` WHERE user_id=$1 ORDER BY created_at, friend_id;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	friends := []string{}
	for rows.Next() {
		var friendID string
		if err = rows.Scan(&friendID); err != nil {
			return nil, err
		}
		friends = append(friends, friendID)
	}
	return friends, rows.Err()
}

// PutSchedule creates or replaces the schedule entry of a date
func (s *PostgresStore) PutSchedule(ctx context.Context, userID uuid.UUID, entry ScheduleEntry) error {
	exercises := entry.Exercises
	if len(exercises) == 0 {
		exercises = json.RawMessage("[]")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.schedule+` (user_id, date, program_name, exercises)
VALUES($1,$2,$3,$4)
ON CONFLICT (user_id, date) DO UPDATE SET program_name=$3, exercises=$4;`,
		userID, entry.Date, entry.ProgramName, string(exercises))
	return err
}

// Schedule returns the entries between from and to
func (s *PostgresStore) Schedule(ctx context.Context, userID uuid.UUID, from, to string) ([]ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT to_char(date, 'YYYY-MM-DD'), program_name, exercises FROM `+s.schedule+`
WHERE user_id=$1 AND date >= $2 AND date <= $3 ORDER BY date;`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []ScheduleEntry{}
	for rows.Next() {
		var entry ScheduleEntry
		if err = rows.Scan(&entry.Date, &entry.ProgramName, &entry.Exercises); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteSchedule deletes the entry of a date
func (s *PostgresStore) DeleteSchedule(ctx context.Context, userID uuid.UUID, date string) error {
	return notFoundIfNone(s.db.ExecContext(ctx,
		`DELETE FROM `+s.schedule+` WHERE user_id=$1 AND date=$2;`, userID, date))
}

// SaveRecipe upserts a saved recipe
func (s *PostgresStore) SaveRecipe(ctx context.Context, userID uuid.UUID, recipe SavedRecipe) (bool, error) {
	properties, err := json.Marshal(recipe)
	if err != nil {
		return false, err
	}
	var inserted bool
	err = s.db.QueryRowContext(ctx, `INSERT INTO `+s.recipe+` (user_id, recipe_id, properties)
VALUES($1,$2,$3)
ON CONFLICT (user_id, recipe_id) DO UPDATE SET properties=$3
RETURNING (xmax = 0) AS inserted;`, userID, recipe.ID, string(properties)).Scan(&inserted)
	return inserted, err
}

// Recipes returns the saved recipes of the user, oldest first
func (s *PostgresStore) Recipes(ctx context.Context, userID uuid.UUID) ([]SavedRecipe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT properties FROM `+s.recipe+` WHERE user_id=$1 ORDER BY created_at, recipe_id;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recipes := []SavedRecipe{}
	for rows.Next() {
		var (
			properties json.RawMessage
			recipe     SavedRecipe
		)
		if err = rows.Scan(&properties); err != nil {
			return nil, err
		}
		if err = json.Unmarshal(properties, &recipe); err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}

// DeleteRecipe deletes a saved recipe
func (s *PostgresStore) DeleteRecipe(ctx context.Context, userID uuid.UUID, recipeID string) error {
	return notFoundIfNone(s.db.ExecContext(ctx,
		`DELETE FROM `+s.recipe+` WHERE user_id=$1 AND recipe_id=$2;`, userID, recipeID))
}
