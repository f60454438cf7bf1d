package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
)

// Service is the authentication gate: it turns a session or bearer token into
// a verified, firm-bound User, or a typed resolution error.
type Service struct {
	repo   Repository
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, tokens *TokenIssuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// ResolveCaller resolves the session's user against the backing store. It
// re-reads the store on every call rather than trusting session claims.
func (s *Service) ResolveCaller(ctx context.Context, sess *shared.Session) (*User, error) {
	if sess == nil || sess.User() == "" {
		return nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(sess.User())
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return s.resolveByID(ctx, userID)
}

// ResolveToken resolves a bearer API token into a User. The token carries only
// the user ID; role and firm are always read fresh from the store.
func (s *Service) ResolveToken(ctx context.Context, raw string) (*User, error) {
	if s.tokens == nil {
		return nil, ErrUnauthenticated
	}
	userID, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return s.resolveByID(ctx, userID)
}

func (s *Service) resolveByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	acc, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("resolve caller", slog.String("user_id", userID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	if !acc.IsActive {
		return nil, ErrAccountNotFound
	}
	if acc.FirmID == uuid.Nil {
		return nil, ErrNoFirmAssigned
	}
	role, err := rbac.ParseRole(acc.Role)
	if err != nil {
		// A persisted role outside the closed set is a data defect, not a
		// caller mistake.
		s.logger.Error("resolve caller", slog.String("user_id", userID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	return &User{
		ID:       acc.ID,
		Email:    acc.Email,
		Name:     acc.Name,
		Role:     role,
		FirmID:   acc.FirmID,
		FirmName: acc.FirmName,
	}, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// IssueToken mints an API bearer token for the given account.
func (s *Service) IssueToken(acc *Account) (string, error) {
	if s.tokens == nil {
		return "", errors.New("authn: token issuer not configured")
	}
	return s.tokens.Issue(acc.ID)
}

// RegisterSession persists the session metadata.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
