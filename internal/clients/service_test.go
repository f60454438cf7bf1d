package clients

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
)

type stubRepository struct {
	clients map[uuid.UUID]*Client

	created  *Client
	updated  *Client
	archived uuid.UUID
	listReq  ListRequest
}

func newStubRepository() *stubRepository {
	return &stubRepository{clients: make(map[uuid.UUID]*Client)}
}

func (s *stubRepository) Get(_ context.Context, id uuid.UUID) (*Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubRepository) List(_ context.Context, filter access.Filter, req ListRequest) ([]Client, shared.Pagination, error) {
	s.listReq = req
	var out []Client
	for _, c := range s.clients {
		if filter.Matches(c.Ownership()) {
			out = append(out, *c)
		}
	}
	return out, shared.NewPagination(req.Page, req.PerPage, len(out)), nil
}

func (s *stubRepository) Create(_ context.Context, c *Client) error {
	s.created = c
	s.clients[c.ID] = c
	return nil
}

func (s *stubRepository) Update(_ context.Context, c *Client) error {
	s.updated = c
	s.clients[c.ID] = c
	return nil
}

func (s *stubRepository) Archive(_ context.Context, id uuid.UUID) error {
	s.archived = id
	return nil
}

func testUser(role rbac.Role, firmID uuid.UUID) *authn.User {
	return &authn.User{ID: uuid.New(), Email: "user@firm.example", Role: role, FirmID: firmID}
}

func testService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetBlocksOtherFirms(t *testing.T) {
	repo := newStubRepository()
	firmA := uuid.New()
	firmB := uuid.New()
	c := &Client{ID: uuid.New(), FirmID: firmA, Name: "Acme Exports"}
	repo.clients[c.ID] = c

	svc := testService(repo)

	// Even an admin of another firm sees nothing, not a forbidden hint.
	_, err := svc.Get(context.Background(), testUser(rbac.RoleAdmin, firmB), c.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.Get(context.Background(), testUser(rbac.RoleAdmin, firmA), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestGetEnforcesAssignmentTier(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	owner := uuid.New()
	c := &Client{ID: uuid.New(), FirmID: firm, Name: "Acme Exports", AssignedToID: owner}
	repo.clients[c.ID] = c

	svc := testService(repo)

	associate := testUser(rbac.RoleAssociate, firm)
	_, err := svc.Get(context.Background(), associate, c.ID)
	require.ErrorIs(t, err, authn.ErrForbidden)

	assigned := &authn.User{ID: owner, Role: rbac.RoleAssociate, FirmID: firm}
	got, err := svc.Get(context.Background(), assigned, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestListScopesByTier(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	me := uuid.New()
	mine := &Client{ID: uuid.New(), FirmID: firm, AssignedToID: me}
	other := &Client{ID: uuid.New(), FirmID: firm, AssignedToID: uuid.New()}
	foreign := &Client{ID: uuid.New(), FirmID: uuid.New(), AssignedToID: me}
	for _, c := range []*Client{mine, other, foreign} {
		repo.clients[c.ID] = c
	}

	svc := testService(repo)
	caller := &authn.User{ID: me, Role: rbac.RoleAssociate, FirmID: firm}

	items, page, err := svc.List(context.Background(), caller, ListRequest{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)
	assert.Equal(t, 1, page.Total)
}

func TestCreateForcesCallerFirm(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	svc := testService(repo)

	c, err := svc.Create(context.Background(), testUser(rbac.RolePartner, firm), CreateInput{
		Name:         "Acme Exports",
		TaxID:        "AAACA1234F",
		Jurisdiction: "IN",
	})
	require.NoError(t, err)
	assert.Equal(t, firm, c.FirmID)
	assert.NotEqual(t, uuid.Nil, c.ID)
	require.NotNil(t, repo.created)
	assert.Equal(t, firm, repo.created.FirmID)
}

func TestArchiveRequiresAccess(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	c := &Client{ID: uuid.New(), FirmID: firm, AssignedToID: uuid.New()}
	repo.clients[c.ID] = c

	svc := testService(repo)

	err := svc.Archive(context.Background(), testUser(rbac.RoleTrainee, firm), c.ID)
	require.ErrorIs(t, err, authn.ErrForbidden)
	assert.Equal(t, uuid.Nil, repo.archived)

	require.NoError(t, svc.Archive(context.Background(), testUser(rbac.RolePartner, firm), c.ID))
	assert.Equal(t, c.ID, repo.archived)
}
