package receiving_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/documents/documenttest"
	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/receiving"
	"procura/internal/domain/ledger"
	"procura/internal/domain/ledger/ledgertest"
	"procura/internal/domain/reconcile"
)

type fixture struct {
	ledgerRepo *ledgertest.Repository
	ledger     *ledger.Service
	orders     *documenttest.OrderRepository
	orderSvc   *purchase_order.Service
	recvRepo   *documenttest.ReceivingRepository
	retRepo    *documenttest.ReturnRepository
	svc        *receiving.Service
}

func mockNumerator(prefix string) *numerator.MockGenerator {
	n := 0
	return &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			n++
			return fmt.Sprintf("%s-2026-%05d", prefix, n), nil
		},
	}
}

func newFixture() fixture {
	ledgerRepo := ledgertest.NewRepository()
	ledgerSvc := ledger.NewService(ledgerRepo)
	engine := reconcile.NewEngine(ledgerSvc)
	txm := documenttest.NopTxManager{}

	orders := documenttest.NewOrderRepository()
	recvRepo := documenttest.NewReceivingRepository()
	retRepo := documenttest.NewReturnRepository()

	orderSvc := purchase_order.NewService(orders, recvRepo, mockNumerator("PO"), txm, nil)
	svc := receiving.NewService(recvRepo, engine, retRepo, orderSvc, mockNumerator("RCV"), txm, nil, nil)

	return fixture{
		ledgerRepo: ledgerRepo,
		ledger:     ledgerSvc,
		orders:     orders,
		orderSvc:   orderSvc,
		recvRepo:   recvRepo,
		retRepo:    retRepo,
		svc:        svc,
	}
}

// newOrder creates an approved order for 100 units of one product.
func newOrder(t *testing.T, f fixture, productID id.ID, warehouseID id.ID) *purchase_order.PurchaseOrder {
	t.Helper()
	ctx := context.Background()

	order := purchase_order.New(id.New(), warehouseID)
	order.AddLine(productID, types.NewQuantity(100), types.MustMoney("5"))
	require.NoError(t, f.orderSvc.Create(ctx, order))
	require.NoError(t, f.orderSvc.Approve(ctx, order.ID, "j.moore"))
	return order
}

func newReceivingForOrder(t *testing.T, f fixture, order *purchase_order.PurchaseOrder, qty int64) *receiving.Receiving {
	t.Helper()
	ctx := context.Background()

	doc := receiving.New(order.SupplierID, order.WarehouseID)
	doc.OrderID = order.ID
	line := doc.AddLine(order.Lines[0].ProductID, types.NewQuantity(qty), types.MustMoney("5"))
	orderLineID := order.Lines[0].LineID
	line.OrderLineID = &orderLineID
	require.NoError(t, f.svc.Create(ctx, doc))
	return doc
}

func TestService_ConfirmEditDelete(t *testing.T) {
	// The full lifecycle: receive 100, edit to 60, delete. On-hand ends
	// at zero, the order's received sums track every step, and the
	// ledger keeps all three entries.
	ctx := context.Background()
	f := newFixture()

	productID := id.New()
	warehouseID := id.New()
	order := newOrder(t, f, productID, warehouseID)
	doc := newReceivingForOrder(t, f, order, 100)

	key := entity.StockKey{ProductID: productID, WarehouseID: warehouseID}

	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), agg.OnHand)

	stored, err := f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), stored.Lines[0].ReceivedQuantity)

	// Edit down to 60.
	doc, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines[0].Quantity = types.NewQuantity(60)
	require.NoError(t, f.svc.Update(ctx, doc))

	agg, err = f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(60), agg.OnHand)

	stored, err = f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(60), stored.Lines[0].ReceivedQuantity)

	// Delete reverses the remaining 60.
	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	agg, err = f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.True(t, agg.OnHand.IsZero())

	stored, err = f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].ReceivedQuantity.IsZero())

	entries, err := f.ledger.EntriesByDocument(ctx, doc.Ref())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, entity.TagOriginal, entries[0].OpTag)
	assert.Equal(t, entity.TagAdjustment, entries[1].OpTag)
	assert.Equal(t, entity.TagReversal, entries[2].OpTag)

	// With nothing received the order can finally be deleted.
	require.NoError(t, f.orderSvc.Delete(ctx, order.ID))
}

func TestService_Confirm_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New())
	doc := newReceivingForOrder(t, f, order, 10)

	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	err := f.svc.Confirm(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDocumentConfirmed))
}

func TestService_Update_Unconfirmed_NoLedgerEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New())
	doc := newReceivingForOrder(t, f, order, 10)

	doc.Lines[0].Quantity = types.NewQuantity(25)
	require.NoError(t, f.svc.Update(ctx, doc))

	assert.Empty(t, f.ledgerRepo.Entries())

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(25), stored.Lines[0].Quantity)
	assert.False(t, stored.Confirmed)
}

func TestService_Update_IdempotentSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New())
	doc := newReceivingForOrder(t, f, order, 40)
	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	// Saving a confirmed document without changing lines writes nothing.
	doc, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Comment = "checked by warehouse"
	require.NoError(t, f.svc.Update(ctx, doc))

	entries, err := f.ledger.EntriesByDocument(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_Update_ProductSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	warehouseID := id.New()
	productA := id.New()
	productB := id.New()

	order := newOrder(t, f, productA, warehouseID)
	doc := newReceivingForOrder(t, f, order, 30)
	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	doc, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines[0].ProductID = productB
	doc.Lines[0].OrderLineID = nil
	require.NoError(t, f.svc.Update(ctx, doc))

	aggA, err := f.ledger.GetAggregate(ctx, entity.StockKey{ProductID: productA, WarehouseID: warehouseID})
	require.NoError(t, err)
	assert.True(t, aggA.OnHand.IsZero())

	aggB, err := f.ledger.GetAggregate(ctx, entity.StockKey{ProductID: productB, WarehouseID: warehouseID})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), aggB.OnHand)

	// The order no longer receives anything from this document.
	stored, err := f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].ReceivedQuantity.IsZero())
}

func TestService_Confirm_ExceedsOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New()) // ordered 100
	doc := newReceivingForOrder(t, f, order, 150)

	err := f.svc.Confirm(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	// A rejected confirm leaves no trace.
	assert.Empty(t, f.ledgerRepo.Entries())

	storedOrder, err := f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, storedOrder.Lines[0].ReceivedQuantity.IsZero())

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, stored.Confirmed)
}

func TestService_Confirm_ExceedsOrderedAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New()) // ordered 100
	first := newReceivingForOrder(t, f, order, 70)
	require.NoError(t, f.svc.Confirm(ctx, first.ID))

	// Only 30 remain on order; 40 more is too much.
	second := newReceivingForOrder(t, f, order, 40)
	err := f.svc.Confirm(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	third := newReceivingForOrder(t, f, order, 30)
	require.NoError(t, f.svc.Confirm(ctx, third.ID))
}

func TestService_Update_ExceedsOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New()) // ordered 100
	doc := newReceivingForOrder(t, f, order, 60)
	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	// Raising beyond the ordered quantity is rejected; the document's
	// own confirmed 60 do not count against the bound.
	doc, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines[0].Quantity = types.NewQuantity(150)
	err = f.svc.Update(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	// Raising within the bound goes through.
	doc, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines[0].Quantity = types.NewQuantity(100)
	require.NoError(t, f.svc.Update(ctx, doc))

	storedOrder, err := f.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), storedOrder.Lines[0].ReceivedQuantity)
}

func TestService_Delete_BlockedByReturns(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New())
	doc := newReceivingForOrder(t, f, order, 50)
	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	lineID := doc.Lines[0].LineID
	require.NoError(t, f.recvRepo.SetLineReturnedQuantities(ctx, doc.ID,
		map[id.ID]types.Quantity{lineID: types.NewQuantity(5)}))

	err := f.svc.Delete(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Update_BlockedBelowReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := newOrder(t, f, id.New(), id.New())
	doc := newReceivingForOrder(t, f, order, 50)
	require.NoError(t, f.svc.Confirm(ctx, doc.ID))

	lineID := doc.Lines[0].LineID
	require.NoError(t, f.recvRepo.SetLineReturnedQuantities(ctx, doc.ID,
		map[id.ID]types.Quantity{lineID: types.NewQuantity(20)}))

	// Shrinking below 20 already-returned units is rejected.
	doc, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines[0].Quantity = types.NewQuantity(15)
	err = f.svc.Update(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	// Removing the line entirely is rejected too.
	doc, err = f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	doc.Lines = []receiving.Line{{
		LineID:    id.New(),
		LineNo:    1,
		ProductID: id.New(),
		Quantity:  types.NewQuantity(10),
	}}
	err = f.svc.Update(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}
