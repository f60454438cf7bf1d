package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/shared"
)

// Service applies firm and tier scoping around the client repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns the clients visible to the caller.
func (s *Service) List(ctx context.Context, user *authn.User, req ListRequest) ([]Client, shared.Pagination, error) {
	filter := access.BuildFilter(user, access.KindClient)
	return s.repo.List(ctx, filter, req)
}

// Get fetches one client. A client in another firm is reported as not found
// so record existence never leaks across tenants; a client in the caller's
// firm outside their tier is forbidden.
func (s *Service) Get(ctx context.Context, user *authn.User, id uuid.UUID) (*Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.FirmID != user.FirmID {
		return nil, shared.ErrNotFound
	}
	if !access.CanAccessRecord(user, c.Ownership()) {
		return nil, authn.ErrForbidden
	}
	return c, nil
}

// CreateInput carries the caller-supplied fields for a new client.
type CreateInput struct {
	Name         string
	TaxID        string
	Jurisdiction string
	Industry     string
	AssignedToID uuid.UUID
	ReviewerID   uuid.UUID
}

// Create registers a client under the caller's firm. The firm is always the
// caller's own; it cannot be supplied.
func (s *Service) Create(ctx context.Context, user *authn.User, in CreateInput) (*Client, error) {
	c := &Client{
		ID:           uuid.New(),
		FirmID:       user.FirmID,
		Name:         in.Name,
		TaxID:        in.TaxID,
		Jurisdiction: in.Jurisdiction,
		Industry:     in.Industry,
		AssignedToID: in.AssignedToID,
		ReviewerID:   in.ReviewerID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("client created",
		slog.String("client_id", c.ID.String()),
		slog.String("firm_id", c.FirmID.String()),
		slog.String("actor_id", user.ID.String()))
	return c, nil
}

// Update rewrites the mutable fields of a client the caller can access.
func (s *Service) Update(ctx context.Context, user *authn.User, id uuid.UUID, in CreateInput) (*Client, error) {
	c, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.TaxID = in.TaxID
	c.Jurisdiction = in.Jurisdiction
	c.Industry = in.Industry
	c.AssignedToID = in.AssignedToID
	c.ReviewerID = in.ReviewerID
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}

// Archive deactivates a client without deleting its history.
func (s *Service) Archive(ctx context.Context, user *authn.User, id uuid.UUID) error {
	if _, err := s.Get(ctx, user, id); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, id); err != nil {
		return err
	}
	s.logger.Info("client archived",
		slog.String("client_id", id.String()),
		slog.String("actor_id", user.ID.String()))
	return nil
}
