package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/internal/domain/ledger/ledgertest"
)

// nopTxManager runs the function directly; unit tests exercise business
// logic, not transaction plumbing.
type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newAdjustmentService(repo *ledgertest.Repository) *ledger.AdjustmentService {
	return ledger.NewAdjustmentService(ledger.NewService(repo), &numerator.MockGenerator{}, nopTxManager{})
}

func TestAdjustmentService_Inbound(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := newAdjustmentService(repo)

	key := newKey()
	entry, err := svc.Record(ctx, ledger.AdjustmentRequest{
		Key:      key,
		Quantity: types.NewQuantity(50),
		UnitCost: types.MustMoney("4.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantity(50), entry.SignedQuantity)
	assert.Equal(t, entity.TransactionAdjustment, entry.Type)
	assert.Equal(t, entity.TagOriginal, entry.OpTag)
	assert.Equal(t, "stock_adjustment", entry.DocumentRef.Type)
	assert.NotEmpty(t, entry.DocumentRef.Number)

	agg, err := repo.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(50), agg.OnHand)
	assert.Equal(t, "4", agg.AverageCost.String())
}

func TestAdjustmentService_OpeningBalance(t *testing.T) {
	ctx := context.Background()
	svc := newAdjustmentService(ledgertest.NewRepository())

	entry, err := svc.Record(ctx, ledger.AdjustmentRequest{
		Key:            newKey(),
		Quantity:       types.NewQuantity(200),
		OpeningBalance: true,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionOpeningBalance, entry.Type)
}

func TestAdjustmentService_OpeningBalanceMustBeInbound(t *testing.T) {
	ctx := context.Background()
	svc := newAdjustmentService(ledgertest.NewRepository())

	_, err := svc.Record(ctx, ledger.AdjustmentRequest{
		Key:            newKey(),
		Quantity:       types.NewQuantity(10),
		Direction:      ledger.AdjustmentOut,
		OpeningBalance: true,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAdjustmentService_OutboundRespectsFloor(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepository()
	svc := newAdjustmentService(repo)

	key := newKey()
	_, err := svc.Record(ctx, ledger.AdjustmentRequest{
		Key:      key,
		Quantity: types.NewQuantity(30),
	})
	require.NoError(t, err)

	// Writing off more than on hand fails.
	_, err = svc.Record(ctx, ledger.AdjustmentRequest{
		Key:       key,
		Quantity:  types.NewQuantity(40),
		Direction: ledger.AdjustmentOut,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	_, err = svc.Record(ctx, ledger.AdjustmentRequest{
		Key:       key,
		Quantity:  types.NewQuantity(30),
		Direction: ledger.AdjustmentOut,
	})
	require.NoError(t, err)

	agg, err := repo.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.True(t, agg.OnHand.IsZero())
}

func TestAdjustmentService_RejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newAdjustmentService(ledgertest.NewRepository())

	_, err := svc.Record(ctx, ledger.AdjustmentRequest{
		Key:      newKey(),
		Quantity: types.NewQuantity(-5),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
}
