package products

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type memRepo struct {
	products   map[int64]Product
	referenced map[int64]bool
	nextID     int64
	getCalls   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		products:   make(map[int64]Product),
		referenced: make(map[int64]bool),
		nextID:     1,
	}
}

func (m *memRepo) snapshot() map[int64]Product {
	cp := make(map[int64]Product, len(m.products))
	for id, p := range m.products {
		cp[id] = p
	}
	return cp
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	saved := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.products = saved
		return err
	}
	return nil
}

func (m *memRepo) List(_ context.Context, req ListProductsRequest) ([]Product, int, error) {
	var matched []Product
	for _, p := range m.products {
		if req.Search != "" {
			needle := strings.ToLower(req.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
				continue
			}
		}
		matched = append(matched, p)
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

func (m *memRepo) Get(_ context.Context, id int64) (*Product, error) {
	m.getCalls++
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	return &p, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, id int64) (*Product, error) {
	return m.Get(ctx, id)
}

func (m *memRepo) Create(_ context.Context, product Product) (*Product, error) {
	for _, existing := range m.products {
		if existing.SKU == product.SKU {
			return nil, fmt.Errorf("product sku already exists: %w", shared.ErrDuplicate)
		}
	}
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	return &product, nil
}

func (m *memRepo) Update(_ context.Context, id int64, product Product) error {
	existing, ok := m.products[id]
	if !ok {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	existing.Name = product.Name
	existing.SKU = product.SKU
	existing.UnitPrice = product.UnitPrice
	m.products[id] = existing
	return nil
}

func (m *memRepo) SetStock(_ context.Context, id int64, stock int) error {
	existing, ok := m.products[id]
	if !ok {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	existing.Stock = stock
	m.products[id] = existing
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	if m.referenced[id] {
		return fmt.Errorf("products: product %d is referenced by orders: %w", id, shared.ErrValidation)
	}
	delete(m.products, id)
	return nil
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

type backfillCall struct {
	productID int64
	newName   string
}

type fakeBackfill struct {
	calls []backfillCall
}

func (f *fakeBackfill) EnqueueProductNameBackfill(_ context.Context, productID int64, newName string) error {
	f.calls = append(f.calls, backfillCall{productID: productID, newName: newName})
	return nil
}

var (
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	rep   = shared.Actor{ID: 10, Role: shared.RoleSalesRep}
)

func newTestService(repo Repository, cache *Cache, auditor *fakeAudit, backfill *fakeBackfill) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, cache, auditor, backfill, logger)
}

func createReq() CreateProductRequest {
	return CreateProductRequest{
		Name:      "Rice 25kg",
		SKU:       "RIC-25",
		UnitPrice: decimal.NewFromInt(500),
		Stock:     20,
	}
}

func TestCreateProduct(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, nil, auditor, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)
	require.Equal(t, "Rice 25kg", p.Name)
	require.Equal(t, 20, p.Stock)

	saved, ok := auditor.last().(audit.ProductSaved)
	require.True(t, ok)
	require.True(t, saved.Created)
	require.Equal(t, p.ID, saved.ProductID)
	require.Equal(t, "RIC-25", saved.Fields["sku"])
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	_, err := svc.Create(context.Background(), rep, createReq())
	require.ErrorIs(t, err, shared.ErrAccessDenied)
	require.Empty(t, repo.products)
}

func TestCreateProductValidation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	req := createReq()
	req.UnitPrice = decimal.Zero
	_, err := svc.Create(context.Background(), admin, req)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, createReq())
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateProductRenameEnqueuesBackfill(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	backfill := &fakeBackfill{}
	svc := newTestService(repo, nil, auditor, backfill)

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), admin, p.ID, UpdateProductRequest{
		Name:      "Premium Rice 25kg",
		SKU:       "RIC-25",
		UnitPrice: decimal.NewFromInt(550),
	})
	require.NoError(t, err)
	require.Equal(t, "Premium Rice 25kg", updated.Name)
	require.Equal(t, 20, updated.Stock, "plain updates leave stock alone")

	require.Len(t, backfill.calls, 1)
	require.Equal(t, backfillCall{productID: p.ID, newName: "Premium Rice 25kg"}, backfill.calls[0])

	saved, ok := auditor.last().(audit.ProductSaved)
	require.True(t, ok)
	require.False(t, saved.Created)
	require.Contains(t, saved.Fields, "name")
	require.Contains(t, saved.Fields, "unit_price")
	require.NotContains(t, saved.Fields, "sku")
}

func TestUpdateProductPriceOnlySkipsBackfill(t *testing.T) {
	repo := newMemRepo()
	backfill := &fakeBackfill{}
	svc := newTestService(repo, nil, &fakeAudit{}, backfill)

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), admin, p.ID, UpdateProductRequest{
		Name:      "Rice 25kg",
		SKU:       "RIC-25",
		UnitPrice: decimal.NewFromInt(600),
	})
	require.NoError(t, err)
	require.Empty(t, backfill.calls)
}

func TestAdjustStock(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, nil, auditor, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	adjusted, err := svc.AdjustStock(context.Background(), admin, p.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 25, adjusted.Stock)

	event, ok := auditor.last().(audit.ProductStockAdjusted)
	require.True(t, ok)
	require.Equal(t, 5, event.Delta)
	require.Equal(t, 25, event.NewStock)

	adjusted, err = svc.AdjustStock(context.Background(), admin, p.ID, -10)
	require.NoError(t, err)
	require.Equal(t, 15, adjusted.Stock)
}

func TestAdjustStockRefusesNegative(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	_, err = svc.AdjustStock(context.Background(), admin, p.ID, -30)
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, p.ID, stockErr.ProductID)
	require.Equal(t, 30, stockErr.Requested)
	require.Equal(t, 20, stockErr.Available)
	require.Equal(t, 20, repo.products[p.ID].Stock, "failed adjustment leaves stock untouched")
}

func TestAdjustStockValidation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	_, err = svc.AdjustStock(context.Background(), admin, p.ID, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AdjustStock(context.Background(), rep, p.ID, 5)
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	_, err = svc.AdjustStock(context.Background(), admin, 404, 5)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteProduct(t *testing.T) {
	repo := newMemRepo()
	auditor := &fakeAudit{}
	svc := newTestService(repo, nil, auditor, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), rep, p.ID), shared.ErrAccessDenied)

	require.NoError(t, svc.Delete(context.Background(), admin, p.ID))
	require.Empty(t, repo.products)

	deleted, ok := auditor.last().(audit.ProductDeleted)
	require.True(t, ok)
	require.Equal(t, "Rice 25kg", deleted.Name)
}

func TestDeleteReferencedProduct(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)
	repo.referenced[p.ID] = true

	require.ErrorIs(t, svc.Delete(context.Background(), admin, p.ID), shared.ErrValidation)
	require.Len(t, repo.products, 1)
}

func TestListProducts(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil, &fakeAudit{}, &fakeBackfill{})

	_, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)
	oil := CreateProductRequest{Name: "Cooking Oil 1L", SKU: "OIL-1", UnitPrice: decimal.NewFromInt(100), Stock: 50}
	_, err = svc.Create(context.Background(), admin, oil)
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Products, 2)
	require.Equal(t, "Cooking Oil 1L", resp.Products[0].Name, "sorted by name")
	require.Equal(t, 2, resp.Pagination.Total)

	resp, err = svc.List(context.Background(), ListProductsRequest{Search: "oil"})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)

	resp, err = svc.List(context.Background(), ListProductsRequest{Search: "nothing"})
	require.NoError(t, err)
	require.NotNil(t, resp.Products)
	require.Empty(t, resp.Products)
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestGetReadsThroughCache(t *testing.T) {
	repo := newMemRepo()
	cache := newTestCache(t)
	svc := newTestService(repo, cache, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)
	repo.getCalls = 0

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, 1, repo.getCalls)

	got, err = svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "Rice 25kg", got.Name)
	require.Equal(t, 1, repo.getCalls, "second read is served from cache")
}

func TestStockAdjustInvalidatesCache(t *testing.T) {
	repo := newMemRepo()
	cache := newTestCache(t)
	svc := newTestService(repo, cache, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.AdjustStock(context.Background(), admin, p.ID, -5)
	require.NoError(t, err)

	repo.getCalls = 0
	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.getCalls, "invalidation forces a database read")
	require.Equal(t, 15, got.Stock)
}

func TestRenameInvalidatesCache(t *testing.T) {
	repo := newMemRepo()
	cache := newTestCache(t)
	svc := newTestService(repo, cache, &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), admin, p.ID, UpdateProductRequest{
		Name: "Premium Rice 25kg", SKU: "RIC-25", UnitPrice: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "Premium Rice 25kg", got.Name)
}

func TestNilCacheIsANoop(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, NewCache(nil, time.Minute), &fakeAudit{}, &fakeBackfill{})

	p, err := svc.Create(context.Background(), admin, createReq())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	got, err = svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}
