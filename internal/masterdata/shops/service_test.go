package shops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type memRepo struct {
	shops  map[int64]Shop
	roles  map[int64]shared.Role
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		shops: make(map[int64]Shop),
		roles: map[int64]shared.Role{
			1:  shared.RoleAdmin,
			10: shared.RoleSalesRep,
			11: shared.RoleSalesRep,
		},
		nextID: 1,
	}
}

func (m *memRepo) List(_ context.Context, req ListShopsRequest) ([]Shop, int, error) {
	var matched []Shop
	for _, s := range m.shops {
		if req.Search != "" {
			needle := strings.ToLower(req.Search)
			if !strings.Contains(strings.ToLower(s.Name), needle) && !strings.Contains(s.Phone, req.Search) {
				continue
			}
		}
		if req.SalesRepID != nil && s.SalesRepID != *req.SalesRepID {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	p := shared.NewPagination(req.Page, req.PerPage, total)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (*Shop, error) {
	s, ok := m.shops[id]
	if !ok {
		return nil, fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
	}
	return &s, nil
}

func (m *memRepo) Create(_ context.Context, shop Shop) (*Shop, error) {
	for _, existing := range m.shops {
		if existing.Name == shop.Name {
			return nil, fmt.Errorf("shop name already exists: %w", shared.ErrDuplicate)
		}
	}
	shop.ID = m.nextID
	m.nextID++
	m.shops[shop.ID] = shop
	return &shop, nil
}

func (m *memRepo) Update(_ context.Context, id int64, shop Shop) error {
	if _, ok := m.shops[id]; !ok {
		return fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
	}
	shop.ID = id
	m.shops[id] = shop
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.shops[id]; !ok {
		return fmt.Errorf("shops: shop %d: %w", id, shared.ErrNotFound)
	}
	delete(m.shops, id)
	return nil
}

func (m *memRepo) UserRole(_ context.Context, userID int64) (shared.Role, error) {
	role, ok := m.roles[userID]
	if !ok {
		return "", fmt.Errorf("shops: user %d: %w", userID, shared.ErrNotFound)
	}
	return role, nil
}

type fakeAudit struct {
	events []audit.Event
}

func (f *fakeAudit) Record(_ context.Context, _ int64, events ...audit.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeAudit) last() audit.Event {
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

var (
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	rep   = shared.Actor{ID: 10, Role: shared.RoleSalesRep}
)

func newTestService(repo Repository, auditor AuditRecorder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, auditor, "+95", logger)
}

func saveReq() SaveShopRequest {
	return SaveShopRequest{
		Name:           "Golden Star Mart",
		Address:        "No. 12 Bogyoke Road",
		Phone:          "09791234567",
		MaxBillAmount:  decimal.NewFromInt(10000),
		MaxActiveBills: 2,
		SalesRepID:     10,
	}
}

func TestCreateShop(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, auditor)

	shop, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	require.Equal(t, "Golden Star Mart", shop.Name)
	require.Equal(t, "+959791234567", shop.Phone, "stored phone is normalized")
	require.True(t, shop.MaxBillAmount.Equal(decimal.NewFromInt(10000)))
	require.Equal(t, int64(10), shop.SalesRepID)

	saved, ok := auditor.last().(audit.ShopSaved)
	require.True(t, ok)
	require.True(t, saved.Created)
	require.Equal(t, shop.ID, saved.ShopID)
	require.Equal(t, "+959791234567", saved.Fields["phone"])
}

func TestCreateShopRequiresAdmin(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Create(context.Background(), rep, saveReq())
	require.ErrorIs(t, err, shared.ErrAccessDenied)
	require.Empty(t, repo.shops)
}

func TestCreateShopValidatesAssignedRep(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	req := saveReq()
	req.SalesRepID = 99
	_, err := svc.Create(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req.SalesRepID = 1 // admin account, not a rep
	_, err = svc.Create(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.shops)
}

func TestCreateShopRejectsBadInput(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	req := saveReq()
	req.Phone = "12ab34"
	_, err := svc.Create(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = saveReq()
	req.MaxBillAmount = decimal.NewFromInt(-1)
	_, err = svc.Create(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateShopDuplicateName(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, saveReq())
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateShopAuditsChanges(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, auditor)

	shop, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)

	req := saveReq()
	req.Name = "Golden Star Supermart"
	req.MaxBillAmount = decimal.NewFromInt(25000)
	updated, err := svc.Update(context.Background(), admin, shop.ID, req)
	require.NoError(t, err)
	require.Equal(t, "Golden Star Supermart", updated.Name)

	saved, ok := auditor.last().(audit.ShopSaved)
	require.True(t, ok)
	require.False(t, saved.Created)
	require.Len(t, saved.Fields, 2)
	nameDiff, ok := saved.Fields["name"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Golden Star Mart", nameDiff["from"])
	require.Equal(t, "Golden Star Supermart", nameDiff["to"])
	require.Contains(t, saved.Fields, "max_bill_amount")
}

func TestUpdateShopNoChangesNoAudit(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, auditor)

	shop, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	before := len(auditor.events)

	_, err = svc.Update(context.Background(), admin, shop.ID, saveReq())
	require.NoError(t, err)
	require.Len(t, auditor.events, before, "identical save should not produce an audit event")
}

func TestUpdateShopRequiresAdmin(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	shop, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), rep, shop.ID, saveReq())
	require.ErrorIs(t, err, shared.ErrAccessDenied)
}

func TestUpdateUnknownShop(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Update(context.Background(), admin, 404, saveReq())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListScopesRepsToAssignments(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	other := saveReq()
	other.Name = "City Grocers"
	other.SalesRepID = 11
	_, err = svc.Create(context.Background(), admin, other)
	require.NoError(t, err)

	otherRep := int64(11)
	resp, err := svc.List(context.Background(), rep, ListShopsRequest{SalesRepID: &otherRep})
	require.NoError(t, err)
	require.Len(t, resp.Shops, 1, "rep filter is forced to the caller's own id")
	require.Equal(t, int64(10), resp.Shops[0].SalesRepID)
	require.Equal(t, 1, resp.Pagination.Total)

	resp, err = svc.List(context.Background(), admin, ListShopsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Shops, 2)
	require.Equal(t, "City Grocers", resp.Shops[0].Name, "sorted by name")
}

func TestListSearch(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	other := saveReq()
	other.Name = "City Grocers"
	other.SalesRepID = 11
	_, err = svc.Create(context.Background(), admin, other)
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), admin, ListShopsRequest{Search: "golden"})
	require.NoError(t, err)
	require.Len(t, resp.Shops, 1)
	require.Equal(t, "Golden Star Mart", resp.Shops[0].Name)

	resp, err = svc.List(context.Background(), admin, ListShopsRequest{Search: "no such shop"})
	require.NoError(t, err)
	require.Empty(t, resp.Shops)
	require.NotNil(t, resp.Shops, "empty result is an empty list, not null")
}

func TestGetScopesRepToAssignment(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeAudit{})

	mine, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)
	other := saveReq()
	other.Name = "City Grocers"
	other.SalesRepID = 11
	theirs, err := svc.Create(context.Background(), admin, other)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), rep, mine.ID)
	require.NoError(t, err)
	require.Equal(t, mine.ID, got.ID)

	_, err = svc.Get(context.Background(), rep, theirs.ID)
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	_, err = svc.Get(context.Background(), admin, theirs.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), rep, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteShop(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, auditor)

	shop, err := svc.Create(context.Background(), admin, saveReq())
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), rep, shop.ID), shared.ErrAccessDenied)

	require.NoError(t, svc.Delete(context.Background(), admin, shop.ID))
	require.Empty(t, repo.shops)

	deleted, ok := auditor.last().(audit.ShopDeleted)
	require.True(t, ok)
	require.Equal(t, shop.ID, deleted.ShopID)
	require.Equal(t, "Golden Star Mart", deleted.Name)

	require.ErrorIs(t, svc.Delete(context.Background(), admin, shop.ID), shared.ErrNotFound)
}
