package reconcile_test

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
	"procura/internal/domain/reconcile"
)

type fixture struct {
	repo   *ledgertest.Repository
	ledger *ledger.Service
	engine *reconcile.Engine
}

func newFixture() fixture {
	repo := ledgertest.NewRepository()
	svc := ledger.NewService(repo)
	return fixture{
		repo:   repo,
		ledger: svc,
		engine: reconcile.NewEngine(svc),
	}
}

func receivingOpts(tag entity.OperationTag) reconcile.Options {
	return reconcile.Options{
		Type:      entity.TransactionPurchase,
		Tag:       tag,
		Direction: +1,
	}
}

func TestEngine_EditThenDelete(t *testing.T) {
	// Receive 100, edit down to 60, then delete: on-hand ends at zero and
	// the full history survives as three entries.
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}
	ref := entity.DocumentRef{Type: "receiving", ID: id.New(), Number: "RCV-2026-00007"}

	res, err := f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(100), UnitCost: types.MustMoney("5")},
	}, receivingOpts(entity.TagOriginal))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, types.NewQuantity(100), res.Entries[0].SignedQuantity)

	res, err = f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(60)},
	}, receivingOpts(entity.TagAdjustment))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, types.NewQuantity(-40), res.Entries[0].SignedQuantity)
	assert.Equal(t, entity.TagAdjustment, res.Entries[0].OpTag)

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(60), agg.OnHand)

	res, err = f.engine.Reverse(ctx, ref, entity.TransactionPurchase)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, types.NewQuantity(-60), res.Entries[0].SignedQuantity)
	assert.Equal(t, entity.TagReversal, res.Entries[0].OpTag)

	agg, err = f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.True(t, agg.OnHand.IsZero())

	entries, err := f.ledger.EntriesByDocument(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	net, err := f.ledger.NetApplied(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, net)
}

func TestEngine_IdempotentReEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}
	ref := entity.DocumentRef{Type: "receiving", ID: id.New()}
	target := []reconcile.TargetLine{{Key: key, Quantity: types.NewQuantity(42)}}

	res, err := f.engine.Reconcile(ctx, ref, target, receivingOpts(entity.TagOriginal))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	// Saving again with an unchanged target writes nothing.
	res, err = f.engine.Reconcile(ctx, ref, target, receivingOpts(entity.TagAdjustment))
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 1, res.Unchanged)

	entries, err := f.ledger.EntriesByDocument(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEngine_ProductSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	warehouse := id.New()
	keyA := entity.StockKey{ProductID: id.New(), WarehouseID: warehouse}
	keyB := entity.StockKey{ProductID: id.New(), WarehouseID: warehouse}
	ref := entity.DocumentRef{Type: "receiving", ID: id.New()}

	_, err := f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: keyA, Quantity: types.NewQuantity(30)},
	}, receivingOpts(entity.TagOriginal))
	require.NoError(t, err)

	// Edit replaces product A with product B.
	res, err := f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: keyB, Quantity: types.NewQuantity(30)},
	}, receivingOpts(entity.TagAdjustment))
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	aggA, err := f.ledger.GetAggregate(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, aggA.OnHand.IsZero())

	aggB, err := f.ledger.GetAggregate(ctx, keyB)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), aggB.OnHand)
}

func TestEngine_DuplicateLinesSummed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}
	ref := entity.DocumentRef{Type: "receiving", ID: id.New()}

	res, err := f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(10)},
		{Key: key, Quantity: types.NewQuantity(5)},
	}, receivingOpts(entity.TagOriginal))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, types.NewQuantity(15), res.Entries[0].SignedQuantity)
}

func TestEngine_DuplicateLinesWeightCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}
	ref := entity.DocumentRef{Type: "receiving", ID: id.New()}

	// Two batches of the same product at different prices: the folded
	// entry carries the weighted average, not the last line's price.
	res, err := f.engine.Reconcile(ctx, ref, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(10), UnitCost: types.MustMoney("10")},
		{Key: key, Quantity: types.NewQuantity(10), UnitCost: types.MustMoney("20")},
	}, receivingOpts(entity.TagOriginal))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].UnitCost.Equal(types.MustMoney("15")), "got %s", res.Entries[0].UnitCost)

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.True(t, agg.AverageCost.Equal(types.MustMoney("15")), "got %s", agg.AverageCost)
}

func TestEngine_ReturnDirectionEnforcesFloor(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}

	// Stock the warehouse with 10 units first.
	_, err := f.engine.Reconcile(ctx,
		entity.DocumentRef{Type: "receiving", ID: id.New()},
		[]reconcile.TargetLine{{Key: key, Quantity: types.NewQuantity(10)}},
		receivingOpts(entity.TagOriginal))
	require.NoError(t, err)

	returnRef := entity.DocumentRef{Type: "purchase_return", ID: id.New()}
	returnOpts := reconcile.Options{
		Type:      entity.TransactionReturn,
		Tag:       entity.TagOriginal,
		Direction: -1,
	}

	// Returning more than on hand is rejected and leaves no entries.
	_, err = f.engine.Reconcile(ctx, returnRef, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(25)},
	}, returnOpts)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	net, err := f.ledger.NetApplied(ctx, returnRef)
	require.NoError(t, err)
	assert.Empty(t, net)

	// Returning within the balance works and nets negative.
	_, err = f.engine.Reconcile(ctx, returnRef, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(4)},
	}, returnOpts)
	require.NoError(t, err)

	net, err = f.ledger.NetApplied(ctx, returnRef)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-4), net[key])

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(6), agg.OnHand)
}

func TestEngine_ReverseRestoresReturnedStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}

	_, err := f.engine.Reconcile(ctx,
		entity.DocumentRef{Type: "receiving", ID: id.New()},
		[]reconcile.TargetLine{{Key: key, Quantity: types.NewQuantity(100)}},
		receivingOpts(entity.TagOriginal))
	require.NoError(t, err)

	returnRef := entity.DocumentRef{Type: "purchase_return", ID: id.New()}
	_, err = f.engine.Reconcile(ctx, returnRef, []reconcile.TargetLine{
		{Key: key, Quantity: types.NewQuantity(20)},
	}, reconcile.Options{Type: entity.TransactionReturn, Tag: entity.TagOriginal, Direction: -1})
	require.NoError(t, err)

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(80), agg.OnHand)

	// Deleting the return puts the 20 units back.
	res, err := f.engine.Reverse(ctx, returnRef, entity.TransactionReturn)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, types.NewQuantity(20), res.Entries[0].SignedQuantity)

	agg, err = f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), agg.OnHand)
}

func TestEngine_RejectsNegativeTargetLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.engine.Reconcile(ctx,
		entity.DocumentRef{Type: "receiving", ID: id.New()},
		[]reconcile.TargetLine{{
			Key:      entity.StockKey{ProductID: id.New(), WarehouseID: id.New()},
			Quantity: types.NewQuantity(-1),
		}},
		receivingOpts(entity.TagOriginal))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
}
