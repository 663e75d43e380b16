package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type memRepo struct {
	billing  map[int64]OrderBilling
	payments map[int64][]Payment
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		billing: map[int64]OrderBilling{
			1: {OrderID: 1, ShopID: 1, SalesRepID: 10, Status: statusApproved, Total: decimal.NewFromInt(500), ShopName: "Golden Star Mart", ShopPhone: "09791234567"},
			2: {OrderID: 2, ShopID: 1, SalesRepID: 10, Status: "pending", Total: decimal.NewFromInt(300), ShopName: "Golden Star Mart", ShopPhone: "09791234567"},
			3: {OrderID: 3, ShopID: 1, SalesRepID: 10, Status: "rejected", Total: decimal.NewFromInt(300), ShopName: "Golden Star Mart", ShopPhone: "09791234567"},
		},
		payments: map[int64][]Payment{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snap := make(map[int64][]Payment, len(m.payments))
	for id, list := range m.payments {
		snap[id] = append([]Payment(nil), list...)
	}
	if err := fn(ctx, m); err != nil {
		m.payments = snap
		return err
	}
	return nil
}

func (m *memRepo) GetOrderBilling(ctx context.Context, orderID int64) (*OrderBilling, error) {
	b, ok := m.billing[orderID]
	if !ok {
		return nil, fmt.Errorf("payments: order %d: %w", orderID, shared.ErrNotFound)
	}
	return &b, nil
}

func (m *memRepo) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range m.payments[orderID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (m *memRepo) Insert(ctx context.Context, p Payment) (Payment, error) {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.payments[p.OrderID] = append(m.payments[p.OrderID], p)
	return p, nil
}

func (m *memRepo) OrderOwner(ctx context.Context, orderID int64) (int64, error) {
	b, ok := m.billing[orderID]
	if !ok {
		return 0, fmt.Errorf("payments: order %d: %w", orderID, shared.ErrNotFound)
	}
	return b.SalesRepID, nil
}

func (m *memRepo) ListForOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	return append([]Payment(nil), m.payments[orderID]...), nil
}

type fakeAudit struct {
	events []audit.Event
}

func (f *fakeAudit) Record(ctx context.Context, actorID int64, events ...audit.Event) error {
	f.events = append(f.events, events...)
	return nil
}

type fakeNotifier struct {
	calls           int
	lastPhone       string
	lastOutstanding decimal.Decimal
	fail            bool
}

func (f *fakeNotifier) PaymentReceived(ctx context.Context, phone string, orderID int64, amount, outstanding decimal.Decimal) notify.Outcome {
	f.calls++
	f.lastPhone = phone
	f.lastOutstanding = outstanding
	if f.fail {
		return notify.Outcome{Error: "gateway down"}
	}
	return notify.Outcome{Sent: true}
}

func newTestService(repo *memRepo) (*Service, *fakeAudit, *fakeNotifier) {
	auditor := &fakeAudit{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, auditor, notifier, logger), auditor, notifier
}

var (
	rep   = shared.Actor{ID: 10, Role: shared.RoleSalesRep}
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
)

func pay(amount int64) RecordPaymentRequest {
	return RecordPaymentRequest{Amount: decimal.NewFromInt(amount)}
}

func TestRecordPayment(t *testing.T) {
	repo := newMemRepo()
	svc, auditor, notifier := newTestService(repo)
	notes := "cash at delivery"

	result, err := svc.Record(context.Background(), rep, 1, RecordPaymentRequest{
		Amount: decimal.NewFromInt(300),
		Notes:  &notes,
	})
	require.NoError(t, err)
	require.True(t, result.Payment.Amount.Equal(decimal.NewFromInt(300)))
	require.Equal(t, int64(10), result.Payment.RecordedBy)
	require.NotNil(t, result.Payment.Notes)
	require.Equal(t, "cash at delivery", *result.Payment.Notes)
	require.True(t, result.Collected.Equal(decimal.NewFromInt(300)))
	require.True(t, result.Outstanding.Equal(decimal.NewFromInt(200)))
	require.True(t, result.Notification.Sent)

	require.Equal(t, 1, notifier.calls)
	require.Equal(t, "09791234567", notifier.lastPhone)
	require.True(t, notifier.lastOutstanding.Equal(decimal.NewFromInt(200)))

	require.Len(t, auditor.events, 1)
	event, ok := auditor.events[0].(audit.PaymentRecorded)
	require.True(t, ok)
	require.Equal(t, result.Payment.ID, event.PaymentID)
	require.True(t, event.PreviousCollected.Equal(decimal.Zero))
	require.True(t, event.NewOutstanding.Equal(decimal.NewFromInt(200)))
}

func TestRecordPaymentTracksPreviousCollected(t *testing.T) {
	repo := newMemRepo()
	svc, auditor, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, rep, 1, pay(300))
	require.NoError(t, err)
	result, err := svc.Record(ctx, rep, 1, pay(150))
	require.NoError(t, err)
	require.True(t, result.Collected.Equal(decimal.NewFromInt(450)))
	require.True(t, result.Outstanding.Equal(decimal.NewFromInt(50)))

	event, ok := auditor.events[len(auditor.events)-1].(audit.PaymentRecorded)
	require.True(t, ok)
	require.True(t, event.PreviousCollected.Equal(decimal.NewFromInt(300)))
	require.True(t, event.NewOutstanding.Equal(decimal.NewFromInt(50)))
}

func TestOverpaymentRejected(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	// Exact settlement brings outstanding to zero.
	result, err := svc.Record(ctx, rep, 1, pay(500))
	require.NoError(t, err)
	require.True(t, result.Outstanding.IsZero())

	// Any further positive amount overpays.
	_, err = svc.Record(ctx, rep, 1, RecordPaymentRequest{Amount: decimal.RequireFromString("0.01")})
	require.ErrorIs(t, err, shared.ErrOverpayment)

	var overErr *shared.OverpaymentError
	require.ErrorAs(t, err, &overErr)
	require.Equal(t, int64(1), overErr.OrderID)
	require.True(t, overErr.Outstanding.IsZero())
	require.True(t, overErr.Attempted.Equal(decimal.RequireFromString("0.01")))

	require.Len(t, repo.payments[1], 1)
}

func TestPartialOverpaymentRejected(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, rep, 1, pay(400))
	require.NoError(t, err)

	_, err = svc.Record(ctx, rep, 1, pay(101))
	require.ErrorIs(t, err, shared.ErrOverpayment)

	var overErr *shared.OverpaymentError
	require.ErrorAs(t, err, &overErr)
	require.True(t, overErr.Outstanding.Equal(decimal.NewFromInt(100)))

	_, err = svc.Record(ctx, rep, 1, pay(100))
	require.NoError(t, err)
}

func TestRecordPaymentAmountValidation(t *testing.T) {
	repo := newMemRepo()
	svc, _, notifier := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, rep, 1, pay(0))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, rep, 1, pay(-50))
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Empty(t, repo.payments[1])
	require.Zero(t, notifier.calls)
}

func TestRecordPaymentRequiresApprovedOrder(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, rep, 2, pay(100))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.Record(ctx, rep, 3, pay(100))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestRecordPaymentOwnership(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	otherRep := shared.Actor{ID: 11, Role: shared.RoleSalesRep}
	_, err := svc.Record(ctx, otherRep, 1, pay(100))
	require.ErrorIs(t, err, shared.ErrAccessDenied)
	require.Empty(t, repo.payments[1])

	_, err = svc.Record(ctx, admin, 1, pay(100))
	require.NoError(t, err)
}

func TestRecordPaymentUnknownOrder(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.Record(context.Background(), rep, 404, pay(100))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListForOrder(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, rep, 1, pay(100))
	require.NoError(t, err)
	_, err = svc.Record(ctx, rep, 1, pay(250))
	require.NoError(t, err)

	list, err := svc.ListForOrder(ctx, rep, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].Amount.Equal(decimal.NewFromInt(100)))
	require.True(t, list[1].Amount.Equal(decimal.NewFromInt(250)))

	otherRep := shared.Actor{ID: 11, Role: shared.RoleSalesRep}
	_, err = svc.ListForOrder(ctx, otherRep, 1)
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	list, err = svc.ListForOrder(ctx, admin, 2)
	require.NoError(t, err)
	require.Empty(t, list)
	require.NotNil(t, list)

	_, err = svc.ListForOrder(ctx, rep, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPaymentNotificationFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemRepo()
	svc, _, notifier := newTestService(repo)
	notifier.fail = true

	result, err := svc.Record(context.Background(), rep, 1, pay(200))
	require.NoError(t, err)
	require.False(t, result.Notification.Sent)
	require.Equal(t, "gateway down", result.Notification.Error)
	require.Len(t, repo.payments[1], 1)
}
