package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/models"
	"backoffice/repository"
	"backoffice/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type AuthService struct {
	store    *repository.Store
	audit    *AuditLog
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// LoginResult is handed back to the client after a successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Register creates a user. Usernames are unique regardless of case.
func (s *AuthService) Register(ctx context.Context, actor models.Actor, in models.RegisterInput) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" {
		return nil, invalid("username is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password must have at least %d characters", minPasswordLength)
	}
	role := in.Role
	switch role {
	case "":
		role = models.RoleEmployee
	case models.RoleAdmin, models.RoleEmployee:
	default:
		return nil, invalid("unknown role %q", in.Role)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Username:     username,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return nil, err
	}
	if actor.UserID != "" {
		if err := s.audit.Audit(ctx, actor, "user_registered", username); err != nil {
			s.logger.Warn("audit register", zap.Error(err))
		}
	}
	return u, nil
}

// CreateAdmin bootstraps an administrator from the command line.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, name string) (*models.User, error) {
	return s.Register(ctx, models.Actor{}, models.RegisterInput{
		Username: username,
		Password: password,
		Name:     name,
		Role:     models.RoleAdmin,
	})
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Login checks the credentials, opens a server-side session and signs a token bound to it.
func (s *AuthService) Login(ctx context.Context, username, password, ip, device string) (*LoginResult, error) {
	u, err := s.store.Users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := utils.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}

	now := s.now()
	session := &models.Session{
		UserID:    u.ID.Hex(),
		Username:  u.Username,
		Role:      u.Role,
		IP:        ip,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.store.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, err := utils.GenerateToken(s.secret, u.ID.Hex(), u.Username, u.Role, session.ID.Hex(), session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	actor := models.Actor{UserID: u.ID.Hex(), UserName: u.Username, Role: u.Role, OwnerID: u.ID.Hex()}
	if err := s.audit.Activity(ctx, actor, "login", ip); err != nil {
		s.logger.Warn("activity login", zap.Error(err))
	}
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: *u}, nil
}

// Authenticate resolves a bearer token to the acting user. The token is only honoured while its
// session exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Actor, string, error) {
	claims, err := utils.ValidateToken(s.secret, token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	sid, err := primitive.ObjectIDFromHex(claims.SessionID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: token has no session", ErrUnauthorized)
	}
	session, err := s.store.Sessions.Get(ctx, sid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: session ended", ErrUnauthorized)
	}
	if err != nil {
		return nil, "", err
	}
	if session.UserID != claims.ID || !session.ExpiresAt.After(s.now()) {
		return nil, "", fmt.Errorf("%w: session ended", ErrUnauthorized)
	}
	// The stored user decides the role, so a demotion takes effect before the token expires.
	uid, err := primitive.ObjectIDFromHex(session.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: session has no user", ErrUnauthorized)
	}
	user, err := s.store.Users.Get(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
	}
	if err != nil {
		return nil, "", err
	}
	return &models.Actor{
		UserID:   user.ID.Hex(),
		UserName: user.Username,
		Role:     user.Role,
		OwnerID:  user.ID.Hex(),
	}, claims.SessionID, nil
}

// Logout ends the session behind a token. Ending an already ended session is not an error.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor, sessionID string) error {
	sid, err := parseID(sessionID, "session")
	if err != nil {
		return err
	}
	if err := s.store.Sessions.Delete(ctx, sid); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.audit.Activity(ctx, actor, "logout", ""); err != nil {
		s.logger.Warn("activity logout", zap.Error(err))
	}
	return nil
}

// PurgeSessions drops sessions past their expiry.
func (s *AuthService) PurgeSessions(ctx context.Context) (int64, error) {
	return s.store.Sessions.DeleteExpired(ctx, s.now())
}
