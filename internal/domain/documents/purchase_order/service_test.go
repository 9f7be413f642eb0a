package purchase_order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/documents/documenttest"
	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/receiving"
)

func sequentialNumerator(prefix string) *numerator.MockGenerator {
	n := 0
	return &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			n++
			return fmt.Sprintf("%s-2026-%05d", prefix, n), nil
		},
	}
}

type fixture struct {
	orders   *documenttest.OrderRepository
	receipts *documenttest.ReceivingRepository
	svc      *purchase_order.Service
}

func newFixture() fixture {
	orders := documenttest.NewOrderRepository()
	receipts := documenttest.NewReceivingRepository()
	svc := purchase_order.NewService(
		orders, receipts, sequentialNumerator("PO"), documenttest.NopTxManager{}, nil)
	return fixture{orders: orders, receipts: receipts, svc: svc}
}

func newDraft(t *testing.T, f fixture) *purchase_order.PurchaseOrder {
	t.Helper()
	doc := purchase_order.New(id.New(), id.New())
	doc.AddLine(id.New(), types.NewQuantity(100), types.MustMoney("9.99"))
	require.NoError(t, f.svc.Create(context.Background(), doc))
	return doc
}

func TestService_Create(t *testing.T) {
	f := newFixture()
	doc := newDraft(t, f)

	assert.Equal(t, "PO-2026-00001", doc.Number)
	assert.Equal(t, purchase_order.StatusDraft, doc.Status)

	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), stored.TotalQuantity)
	assert.True(t, stored.TotalAmount.Equal(types.MustMoney("999")))
	require.Len(t, stored.Lines, 1)
}

func TestService_Create_RequiresLines(t *testing.T) {
	f := newFixture()

	doc := purchase_order.New(id.New(), id.New())
	err := f.svc.Create(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestService_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)

	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase_order.StatusApproved, stored.Status)
	assert.Equal(t, "j.moore", stored.ApprovedBy)
	require.NotNil(t, stored.ApprovedAt)

	require.NoError(t, f.svc.Close(ctx, doc.ID))

	// Closed is terminal.
	err = f.svc.Approve(ctx, doc.ID, "j.moore")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)

	require.NoError(t, f.svc.Reject(ctx, doc.ID, "budget cut"))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase_order.StatusRejected, stored.Status)
	assert.Equal(t, "budget cut", stored.RejectionReason)

	// Rejected is terminal.
	err = f.svc.Approve(ctx, doc.ID, "j.moore")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Reject_AfterApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)
	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))

	require.NoError(t, f.svc.Reject(ctx, doc.ID, "supplier discontinued the item"))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase_order.StatusRejected, stored.Status)
	assert.Equal(t, "supplier discontinued the item", stored.RejectionReason)

	// Rejection withdraws the approval.
	assert.Empty(t, stored.ApprovedBy)
	assert.Nil(t, stored.ApprovedAt)
}

func TestService_Reject_BlockedByReceipts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)
	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))

	lineID := doc.Lines[0].LineID
	require.NoError(t, f.orders.SetLineReceivedQuantities(ctx, doc.ID,
		map[id.ID]types.Quantity{lineID: types.NewQuantity(40)}))

	err := f.svc.Reject(ctx, doc.ID, "changed supplier")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Update_OnlyDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)

	doc.Comment = "rush delivery"
	require.NoError(t, f.svc.Update(ctx, doc))

	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))

	doc.Comment = "changed again"
	err := f.svc.Update(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Delete_BlockedByReceipts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)
	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))

	lineID := doc.Lines[0].LineID
	require.NoError(t, f.orders.SetLineReceivedQuantities(ctx, doc.ID,
		map[id.ID]types.Quantity{lineID: types.NewQuantity(40)}))

	err := f.svc.Delete(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	// Once the receivings are gone the sums drop to zero and deletion
	// goes through.
	require.NoError(t, f.orders.SetLineReceivedQuantities(ctx, doc.ID, nil))
	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.DeletionMark)
}

func TestService_RefreshReceivedQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f)
	lineID := doc.Lines[0].LineID

	// A confirmed receiving referencing the order line feeds the sum.
	newConfirmedReceiving(t, f.receipts, doc.ID, lineID, 35)

	require.NoError(t, f.svc.RefreshReceivedQuantities(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(35), stored.Lines[0].ReceivedQuantity)
	assert.Equal(t, types.NewQuantity(35), stored.TotalReceived())
}

func TestService_RefreshReceivedQuantities_ClosesFullyReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := newDraft(t, f) // ordered 100
	require.NoError(t, f.svc.Approve(ctx, doc.ID, "j.moore"))
	lineID := doc.Lines[0].LineID

	// A partial receipt leaves the order open.
	newConfirmedReceiving(t, f.receipts, doc.ID, lineID, 60)
	require.NoError(t, f.svc.RefreshReceivedQuantities(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase_order.StatusApproved, stored.Status)

	// The receipt completing the order closes it.
	newConfirmedReceiving(t, f.receipts, doc.ID, lineID, 40)
	require.NoError(t, f.svc.RefreshReceivedQuantities(ctx, doc.ID))

	stored, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase_order.StatusClosed, stored.Status)
	assert.Equal(t, types.NewQuantity(100), stored.TotalReceived())
}

// newConfirmedReceiving plants a confirmed receiving directly in the
// repository; these tests exercise the order side only.
func newConfirmedReceiving(t *testing.T, repo *documenttest.ReceivingRepository, orderID, orderLineID id.ID, qty int64) id.ID {
	t.Helper()
	ctx := context.Background()

	doc := receiving.New(id.New(), id.New())
	doc.OrderID = orderID
	line := doc.AddLine(id.New(), types.NewQuantity(qty), types.ZeroMoney())
	line.OrderLineID = &orderLineID
	doc.MarkConfirmed()

	require.NoError(t, repo.Create(ctx, doc))
	require.NoError(t, repo.SaveLines(ctx, doc.ID, doc.Lines))
	return doc.ID
}
