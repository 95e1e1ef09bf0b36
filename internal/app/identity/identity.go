/*
Package identity implements the identity collaborator: account registration and
login, credential verification for inbound real-time connections, per-race
typing history, and max-merged high scores.

The race engine consumes only a narrow slice of this service (credential
verification and stats recording); everything else backs the REST surface.
*/
package identity

import (
	"context"
	"errors"
	"time"

	"typerace/internal/app/db"
	"typerace/internal/pkg/auth/jwt"
	"typerace/internal/pkg/errs"
	"typerace/internal/pkg/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// User is the account record exposed to handlers and the race engine.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	HighWPM      int        `json:"highWpm"`
	HighAccuracy int        `json:"highAccuracy"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// LeaderboardEntry is one row of the global leaderboard.
type LeaderboardEntry struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	HighWPM    int    `json:"highWpm"`
	AverageWPM int    `json:"averageWpm"`
	TotalRaces int    `json:"totalRaces"`
}

// Service is the PostgreSQL-backed identity collaborator.
type Service struct {
	pool      *pgxpool.Pool
	jwtSecret string
	logger    zerolog.Logger
}

// NewService constructs the identity service on top of an initialized pool.
func NewService(pool *pgxpool.Pool, jwtSecret string) *Service {
	return &Service{
		pool:      pool,
		jwtSecret: jwtSecret,
		logger:    logx.Logger().With().Str("component", "Identity").Logger(),
	}
}

// issueToken signs a fresh identity token for the user.
func (s *Service) issueToken(user *User) (string, *errs.CustomError) {
	payload := &jwt.Payload{
		UserID:   user.ID,
		Username: user.Username,
	}

	token, err := jwt.GenerateToken(payload, s.jwtSecret, jwt.IdentityExpiration)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to sign identity token.")
		return "", errs.NewError(errs.ErrUnknown)
	}

	return token, nil
}

// Register creates a new account and returns it with a signed identity token.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, string, *errs.CustomError) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errs.NewError(errs.ErrUnknown)
	}

	user := &User{}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, last_login_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING id, username, email, high_wpm, high_accuracy, created_at, last_login_at`,
		username, email, string(hashed),
	).Scan(&user.ID, &user.Username, &user.Email, &user.HighWPM, &user.HighAccuracy, &user.CreatedAt, &user.LastLoginAt)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, "", errs.NewError(errs.ErrUserAlreadyExists)
		}
		s.logger.Error().Err(err).Msg("Failed to create user.")
		return nil, "", errs.NewError(errs.ErrUnknown)
	}

	token, cerr := s.issueToken(user)
	if cerr != nil {
		return nil, "", cerr
	}

	return user, token, nil
}

// Login verifies the email/password pair and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, *errs.CustomError) {
	user := &User{}
	var passwordHash string

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, high_wpm, high_accuracy, created_at, last_login_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Username, &user.Email, &passwordHash, &user.HighWPM, &user.HighAccuracy, &user.CreatedAt, &user.LastLoginAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", errs.NewError(errs.ErrInvalidCredentials)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to look up user for login.")
		return nil, "", errs.NewError(errs.ErrUnknown)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return nil, "", errs.NewError(errs.ErrInvalidCredentials)
	}

	if _, err := s.pool.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, user.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update last_login_at.")
	}

	token, cerr := s.issueToken(user)
	if cerr != nil {
		return nil, "", cerr
	}

	return user, token, nil
}

// VerifyCredential validates a credential token and resolves it to an account.
// Expired tokens and malformed/forged tokens map to distinct taxonomy errors so
// clients can distinguish re-login from retry.
func (s *Service) VerifyCredential(ctx context.Context, token string) (*User, *errs.CustomError) {
	if token == "" {
		return nil, errs.NewError(errs.ErrAuthRequired)
	}

	payload, err := jwt.ParseToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.NewError(errs.ErrAuthExpired)
		}
		return nil, errs.NewError(errs.ErrAuthInvalid)
	}

	user, cerr := s.FindByID(ctx, payload.UserID)
	if cerr != nil {
		if cerr.Code == errs.ErrUserNotFound {
			return nil, errs.NewError(errs.ErrAuthInvalid)
		}
		return nil, cerr
	}

	return user, nil
}

// FindByID fetches one account by id.
func (s *Service) FindByID(ctx context.Context, userID string) (*User, *errs.CustomError) {
	user := &User{}

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, high_wpm, high_accuracy, created_at, last_login_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.HighWPM, &user.HighAccuracy, &user.CreatedAt, &user.LastLoginAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NewError(errs.ErrUserNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	return user, nil
}

// AppendHistory records one finished race for the user.
func (s *Service) AppendHistory(ctx context.Context, userID string, wpm, accuracy int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO typing_history (user_id, wpm, accuracy) VALUES ($1, $2, $3)`,
		userID, wpm, accuracy,
	)
	return err
}

// MergeHighScore raises the user's stored high score fields to the given values
// where they are an improvement; existing higher values are kept.
func (s *Service) MergeHighScore(ctx context.Context, userID string, wpm, accuracy int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET high_wpm = GREATEST(high_wpm, $2), high_accuracy = GREATEST(high_accuracy, $3)
		 WHERE id = $1`,
		userID, wpm, accuracy,
	)
	return err
}

// HistoryEntry is one recorded race of a user.
type HistoryEntry struct {
	WPM        int       `json:"wpm"`
	Accuracy   int       `json:"accuracy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// History returns the user's most recent races, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, *errs.CustomError) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT wpm, accuracy, recorded_at
		 FROM typing_history
		 WHERE user_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to query typing history.")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.WPM, &entry.Accuracy, &entry.RecordedAt); err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan history row.")
			return nil, errs.NewError(errs.ErrUnknown)
		}
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		s.logger.Error().Err(rows.Err()).Msg("History row iteration failed.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	return entries, nil
}

// Leaderboard returns the top accounts ordered by high WPM, with race counts
// and average WPM computed from the typing history.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, *errs.CustomError) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.username, u.high_wpm,
		        COALESCE(ROUND(AVG(h.wpm)), 0)::int AS average_wpm,
		        COUNT(h.id)::int AS total_races
		 FROM users u
		 LEFT JOIN typing_history h ON h.user_id = u.id
		 GROUP BY u.id, u.username, u.high_wpm
		 ORDER BY u.high_wpm DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query leaderboard.")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.HighWPM, &entry.AverageWPM, &entry.TotalRaces); err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan leaderboard row.")
			return nil, errs.NewError(errs.ErrUnknown)
		}
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		s.logger.Error().Err(rows.Err()).Msg("Leaderboard row iteration failed.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	return entries, nil
}
