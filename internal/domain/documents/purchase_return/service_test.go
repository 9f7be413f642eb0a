package purchase_return_test

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
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/domain/documents/receiving"
	"procura/internal/domain/ledger"
	"procura/internal/domain/ledger/ledgertest"
	"procura/internal/domain/reconcile"
)

type fixture struct {
	ledger   *ledger.Service
	recvSvc  *receiving.Service
	retSvc   *purchase_return.Service
	recvRepo *documenttest.ReceivingRepository

	warehouseID id.ID
	productID   id.ID
	rcv         *receiving.Receiving
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

// newFixture wires ledger, receiving and return services, and confirms a
// receiving of 100 units to return against.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ledgerSvc := ledger.NewService(ledgertest.NewRepository())
	engine := reconcile.NewEngine(ledgerSvc)
	txm := documenttest.NopTxManager{}

	recvRepo := documenttest.NewReceivingRepository()
	retRepo := documenttest.NewReturnRepository()

	recvSvc := receiving.NewService(recvRepo, engine, retRepo, nil, mockNumerator("RCV"), txm, nil, nil)
	retSvc := purchase_return.NewService(retRepo, engine, recvSvc, mockNumerator("RET"), txm, nil, nil)

	f := &fixture{
		ledger:      ledgerSvc,
		recvSvc:     recvSvc,
		retSvc:      retSvc,
		recvRepo:    recvRepo,
		warehouseID: id.New(),
		productID:   id.New(),
	}

	rcv := receiving.New(id.New(), f.warehouseID)
	rcv.AddLine(f.productID, types.NewQuantity(100), types.MustMoney("5"))
	require.NoError(t, recvSvc.Create(ctx, rcv))
	require.NoError(t, recvSvc.Confirm(ctx, rcv.ID))

	loaded, err := recvSvc.GetByID(ctx, rcv.ID)
	require.NoError(t, err)
	f.rcv = loaded
	return f
}

func (f *fixture) key() entity.StockKey {
	return entity.StockKey{ProductID: f.productID, WarehouseID: f.warehouseID}
}

func (f *fixture) newReturn(t *testing.T, qty int64) *purchase_return.PurchaseReturn {
	t.Helper()
	doc := purchase_return.New(f.rcv.ID, f.rcv.SupplierID, f.warehouseID)
	doc.AddLine(f.rcv.Lines[0].LineID, f.productID, types.NewQuantity(qty))
	require.NoError(t, f.retSvc.Create(context.Background(), doc))
	return doc
}

func TestService_ConfirmThenDelete_RestoresStock(t *testing.T) {
	// Return 20 of 100, then delete the return: stock climbs back to 100
	// and the receiving's returned sums drop to zero.
	ctx := context.Background()
	f := newFixture(t)

	ret := f.newReturn(t, 20)
	require.NoError(t, f.retSvc.Confirm(ctx, ret.ID))

	agg, err := f.ledger.GetAggregate(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(80), agg.OnHand)

	rcv, err := f.recvSvc.GetByID(ctx, f.rcv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(20), rcv.Lines[0].ReturnedQuantity)

	require.NoError(t, f.retSvc.Delete(ctx, ret.ID))

	agg, err = f.ledger.GetAggregate(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), agg.OnHand)

	rcv, err = f.recvSvc.GetByID(ctx, f.rcv.ID)
	require.NoError(t, err)
	assert.True(t, rcv.Lines[0].ReturnedQuantity.IsZero())

	entries, err := f.ledger.EntriesByDocument(ctx, ret.Ref())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.NewQuantity(-20), entries[0].SignedQuantity)
	assert.Equal(t, types.NewQuantity(20), entries[1].SignedQuantity)
	assert.Equal(t, entity.TagReversal, entries[1].OpTag)
}

func TestService_Confirm_ExceedsReturnable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ret := f.newReturn(t, 120)
	err := f.retSvc.Confirm(ctx, ret.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	// Bound check fires before any ledger write.
	net, err := f.ledger.NetApplied(ctx, ret.Ref())
	require.NoError(t, err)
	assert.Empty(t, net)

	agg, err := f.ledger.GetAggregate(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), agg.OnHand)
}

func TestService_Confirm_BoundCountsOtherReturns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.newReturn(t, 70)
	require.NoError(t, f.retSvc.Confirm(ctx, first.ID))

	// Only 30 remain returnable.
	second := f.newReturn(t, 40)
	err := f.retSvc.Confirm(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	third := f.newReturn(t, 30)
	require.NoError(t, f.retSvc.Confirm(ctx, third.ID))

	agg, err := f.ledger.GetAggregate(ctx, f.key())
	require.NoError(t, err)
	assert.True(t, agg.OnHand.IsZero())
}

func TestService_Update_ExcludesOwnContribution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ret := f.newReturn(t, 20)
	require.NoError(t, f.retSvc.Confirm(ctx, ret.ID))

	// Raising 20 -> 30 is within the 100 received even though the
	// receiving already shows 20 returned: this document's own share
	// does not count against it.
	ret, err := f.retSvc.GetByID(ctx, ret.ID)
	require.NoError(t, err)
	ret.Lines[0].Quantity = types.NewQuantity(30)
	require.NoError(t, f.retSvc.Update(ctx, ret))

	agg, err := f.ledger.GetAggregate(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(70), agg.OnHand)

	rcv, err := f.recvSvc.GetByID(ctx, f.rcv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), rcv.Lines[0].ReturnedQuantity)

	// But 110 exceeds the receiving line itself.
	ret, err = f.retSvc.GetByID(ctx, ret.ID)
	require.NoError(t, err)
	ret.Lines[0].Quantity = types.NewQuantity(110)
	err = f.retSvc.Update(ctx, ret)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Confirm_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ret := f.newReturn(t, 5)
	require.NoError(t, f.retSvc.Confirm(ctx, ret.ID))

	err := f.retSvc.Confirm(ctx, ret.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDocumentConfirmed))
}

func TestService_Create_RequiresConfirmedReceiving(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A draft receiving cannot be returned against.
	draft := receiving.New(id.New(), f.warehouseID)
	draft.AddLine(id.New(), types.NewQuantity(10), types.ZeroMoney())
	require.NoError(t, f.recvSvc.Create(ctx, draft))

	doc := purchase_return.New(draft.ID, draft.SupplierID, f.warehouseID)
	doc.AddLine(draft.Lines[0].LineID, draft.Lines[0].ProductID, types.NewQuantity(1))
	err := f.retSvc.Create(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestService_Confirm_UnknownReceivingLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc := purchase_return.New(f.rcv.ID, f.rcv.SupplierID, f.warehouseID)
	doc.AddLine(id.New(), f.productID, types.NewQuantity(1))
	require.NoError(t, f.retSvc.Create(ctx, doc))

	err := f.retSvc.Confirm(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
