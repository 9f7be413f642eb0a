package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/internal/domain/ledger/ledgertest"
)

func newKey() entity.StockKey {
	return entity.StockKey{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	}
}

func newRef(docType string) entity.DocumentRef {
	return entity.DocumentRef{Type: docType, ID: id.New(), Number: "RCV-2026-00001"}
}

func TestService_Increase(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)

	key := newKey()
	ref := newRef("receiving")

	entry, err := svc.Increase(ctx, ledger.Movement{
		Key:      key,
		Quantity: types.NewQuantity(100),
		Type:     entity.TransactionPurchase,
		Document: ref,
		Tag:      entity.TagOriginal,
		UnitCost: types.MustMoney("12.50"),
	})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, types.NewQuantity(100), entry.SignedQuantity)
	assert.Equal(t, entity.TagOriginal, entry.OpTag)
	assert.False(t, id.IsNil(entry.EntryID))

	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), agg.OnHand)
	assert.True(t, agg.AverageCost.Equal(types.MustMoney("12.50")))
}

func TestService_Increase_InvalidQuantity(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(ledgertest.NewRepository())

	for _, qty := range []types.Quantity{0, types.NewQuantity(-5)} {
		_, err := svc.Increase(ctx, ledger.Movement{
			Key:      newKey(),
			Quantity: qty,
			Type:     entity.TransactionPurchase,
			Document: newRef("receiving"),
			Tag:      entity.TagOriginal,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
	}
}

func TestService_Decrease_EnforcesFloor(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)

	key := newKey()
	ref := newRef("receiving")

	_, err := svc.Increase(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(10),
		Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	_, err = svc.Decrease(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(15),
		Type: entity.TransactionReturn, Document: newRef("purchase_return"), Tag: entity.TagOriginal,
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 15.0, appErr.Details["requested"])
	assert.Equal(t, 10.0, appErr.Details["available"])

	// Failed decrease must leave no trace.
	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), agg.OnHand)
	assert.Len(t, repo.Entries(), 1)
}

func TestService_Decrease_CompensatingBypassesFloor(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)

	key := newKey()

	_, err := svc.Increase(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(10),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	// A reversal may exceed what is physically present when later
	// consumers already drained the stock.
	_, err = svc.Decrease(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(15),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagReversal,
		Compensating: true,
	})
	require.NoError(t, err)

	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-5), agg.OnHand)
}

func TestService_OnHandMatchesEntrySum(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)

	key := newKey()
	ref := newRef("receiving")

	quantities := []int64{100, 40, 25}
	for _, q := range quantities {
		_, err := svc.Increase(ctx, ledger.Movement{
			Key: key, Quantity: types.NewQuantity(q),
			Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagOriginal,
		})
		require.NoError(t, err)
	}
	_, err := svc.Decrease(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(30),
		Type: entity.TransactionReturn, Document: newRef("purchase_return"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	var sum types.Quantity
	for _, e := range repo.Entries() {
		sum += e.SignedQuantity
	}

	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sum, agg.OnHand)
	assert.Equal(t, types.NewQuantity(135), agg.OnHand)
}

func TestService_NetApplied(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)

	keyA := newKey()
	keyB := entity.StockKey{ProductID: id.New(), WarehouseID: keyA.WarehouseID}
	ref := newRef("receiving")

	_, err := svc.Increase(ctx, ledger.Movement{
		Key: keyA, Quantity: types.NewQuantity(100),
		Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagOriginal,
	})
	require.NoError(t, err)
	_, err = svc.Increase(ctx, ledger.Movement{
		Key: keyB, Quantity: types.NewQuantity(50),
		Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	// Adjustment entries count toward the same net.
	_, err = svc.Decrease(ctx, ledger.Movement{
		Key: keyA, Quantity: types.NewQuantity(40),
		Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagAdjustment,
		Compensating: true,
	})
	require.NoError(t, err)

	// Fully reversed keys disappear from the net.
	_, err = svc.Decrease(ctx, ledger.Movement{
		Key: keyB, Quantity: types.NewQuantity(50),
		Type: entity.TransactionPurchase, Document: ref, Tag: entity.TagReversal,
		Compensating: true,
	})
	require.NoError(t, err)

	net, err := svc.NetApplied(ctx, ref)
	require.NoError(t, err)
	require.Len(t, net, 1)
	assert.Equal(t, types.NewQuantity(60), net[keyA])
}

func TestService_AverageCostWeighted(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(ledgertest.NewRepository())

	key := newKey()

	_, err := svc.Increase(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(10),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
		UnitCost: types.MustMoney("10"),
	})
	require.NoError(t, err)

	_, err = svc.Increase(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(30),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
		UnitCost: types.MustMoney("20"),
	})
	require.NoError(t, err)

	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	// (10*10 + 30*20) / 40 = 17.5
	assert.True(t, agg.AverageCost.Equal(types.MustMoney("17.5")), "got %s", agg.AverageCost)
}

func TestService_MovementHistory(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(ledgertest.NewRepository())

	productID := id.New()
	keyA := entity.StockKey{ProductID: productID, WarehouseID: id.New()}
	keyB := entity.StockKey{ProductID: productID, WarehouseID: id.New()}

	_, err := svc.Increase(ctx, ledger.Movement{
		Key: keyA, Quantity: types.NewQuantity(10),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	_, err = svc.Increase(ctx, ledger.Movement{
		Key: keyB, Quantity: types.NewQuantity(20),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	// Unrelated product stays out of the history.
	_, err = svc.Increase(ctx, ledger.Movement{
		Key: newKey(), Quantity: types.NewQuantity(5),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	entries, err := svc.GetMovementHistory(ctx, productID, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = svc.GetMovementHistory(ctx, productID, ledger.EntryFilter{WarehouseID: keyA.WarehouseID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.NewQuantity(10), entries[0].SignedQuantity)

	entries, err = svc.GetMovementHistory(ctx, productID, ledger.EntryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_ApplyReservedDelta(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(ledgertest.NewRepository())

	key := newKey()

	err := svc.ApplyReservedDelta(ctx, key, types.NewQuantity(5))
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Increase(ctx, ledger.Movement{
		Key: key, Quantity: types.NewQuantity(20),
		Type: entity.TransactionPurchase, Document: newRef("receiving"), Tag: entity.TagOriginal,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ApplyReservedDelta(ctx, key, types.NewQuantity(5)))

	agg, err := svc.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(5), agg.Reserved)
	assert.Equal(t, types.NewQuantity(15), agg.Available())
}
