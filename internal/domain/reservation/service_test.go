package reservation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/internal/domain/ledger/ledgertest"
)

// nopTxManager runs the function directly; unit tests exercise business
// rules, not transaction plumbing.
type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memRepository is an in-memory reservation store.
type memRepository struct {
	mu    sync.Mutex
	items map[id.ID]Reservation
}

func newMemRepository() *memRepository {
	return &memRepository{items: make(map[id.ID]Reservation)}
}

func (r *memRepository) Create(_ context.Context, res Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[res.ID] = res
	return nil
}

func (r *memRepository) GetByID(_ context.Context, reservationID id.ID) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[reservationID]
	if !ok {
		return Reservation{}, apperror.NewNotFound("reservation", reservationID)
	}
	return res, nil
}

func (r *memRepository) GetByIDForUpdate(ctx context.Context, reservationID id.ID) (Reservation, error) {
	return r.GetByID(ctx, reservationID)
}

func (r *memRepository) Update(_ context.Context, res Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[res.ID]; !ok {
		return apperror.NewNotFound("reservation", res.ID)
	}
	r.items[res.ID] = res
	return nil
}

func (r *memRepository) ListActiveByKey(_ context.Context, key entity.StockKey) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reservation
	for _, res := range r.items {
		if res.StockKey == key && res.Status == StatusActive {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepository) ListActiveByReferenceForUpdate(_ context.Context, key entity.StockKey, reference string) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reservation
	for _, res := range r.items {
		if res.StockKey == key && res.Reference == reference && res.Status == StatusActive {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepository) ListExpired(_ context.Context, now time.Time, limit int) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reservation
	for _, res := range r.items {
		if res.Status == StatusActive && res.IsExpired(now) {
			out = append(out, res)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type fixture struct {
	ledger *ledger.Service
	repo   *memRepository
	svc    *Service
	key    entity.StockKey
}

func newFixture(t *testing.T, onHand int64) fixture {
	t.Helper()

	ledgerSvc := ledger.NewService(ledgertest.NewRepository())
	repo := newMemRepository()
	svc := NewService(repo, ledgerSvc, nopTxManager{})

	key := entity.StockKey{ProductID: id.New(), WarehouseID: id.New()}
	if onHand > 0 {
		_, err := ledgerSvc.Increase(context.Background(), ledger.Movement{
			Key:      key,
			Quantity: types.NewQuantity(onHand),
			Type:     entity.TransactionPurchase,
			Document: entity.DocumentRef{Type: "receiving", ID: id.New()},
			Tag:      entity.TagOriginal,
		})
		require.NoError(t, err)
	}

	return fixture{ledger: ledgerSvc, repo: repo, svc: svc, key: key}
}

func TestService_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	res, err := f.svc.Reserve(ctx, ReserveRequest{
		Key:       f.key,
		Quantity:  types.NewQuantity(30),
		Reference: "SO-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)

	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(70), avail)

	require.NoError(t, f.svc.Release(ctx, res.ID))

	avail, err = f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), avail)

	stored, err := f.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, stored.Status)
	require.NotNil(t, stored.ReleasedAt)
}

func TestService_Reserve_InsufficientAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50)

	_, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(40)})
	require.NoError(t, err)

	// On-hand is 50 but only 10 remain unreserved.
	_, err = f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(20)})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientAvailable, appErr.Code)
	assert.Equal(t, 20.0, appErr.Details["requested"])
	assert.Equal(t, 10.0, appErr.Details["available"])
}

func TestService_Reserve_UnknownKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.svc.Reserve(ctx, ReserveRequest{
		Key:      entity.StockKey{ProductID: id.New(), WarehouseID: id.New()},
		Quantity: types.NewQuantity(1),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Release_NotActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	res, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Release(ctx, res.ID))

	err = f.svc.Release(ctx, res.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	// Double release must not double-credit availability.
	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), avail)
}

func TestService_Release_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	err := f.svc.Release(ctx, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_ReleaseByReference_Full(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	_, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(30), Reference: "SO-1001"})
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(20), Reference: "SO-1001"})
	require.NoError(t, err)

	// Another consumer's hold on the same key stays untouched.
	_, err = f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(10), Reference: "SO-2002"})
	require.NoError(t, err)

	released, err := f.svc.ReleaseByReference(ctx, ReleaseRequest{Key: f.key, Reference: "SO-1001"})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(50), released)

	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(90), avail)

	active, err := f.svc.ListActiveByKey(ctx, f.key)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SO-2002", active[0].Reference)
}

func TestService_ReleaseByReference_Partial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	res, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(30), Reference: "SO-1001"})
	require.NoError(t, err)

	released, err := f.svc.ReleaseByReference(ctx, ReleaseRequest{
		Key: f.key, Reference: "SO-1001", Quantity: types.NewQuantity(10),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), released)

	// The reservation stays active holding the remainder.
	stored, err := f.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, stored.Status)
	assert.Equal(t, types.NewQuantity(20), stored.Quantity)

	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(80), avail)
}

func TestService_ReleaseByReference_SpansReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	first, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(30), Reference: "SO-1001"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(20), Reference: "SO-1001"})
	require.NoError(t, err)

	// 40 releases the oldest reservation in full and splits the next.
	released, err := f.svc.ReleaseByReference(ctx, ReleaseRequest{
		Key: f.key, Reference: "SO-1001", Quantity: types.NewQuantity(40),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(40), released)

	storedFirst, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, storedFirst.Status)

	storedSecond, err := f.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, storedSecond.Status)
	assert.Equal(t, types.NewQuantity(10), storedSecond.Quantity)

	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(90), avail)
}

func TestService_ReleaseByReference_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	_, err := f.svc.ReleaseByReference(ctx, ReleaseRequest{Key: f.key, Reference: "SO-9999"})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// A fully released reference no longer matches.
	_, err = f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(5), Reference: "SO-1001"})
	require.NoError(t, err)
	_, err = f.svc.ReleaseByReference(ctx, ReleaseRequest{Key: f.key, Reference: "SO-1001"})
	require.NoError(t, err)
	_, err = f.svc.ReleaseByReference(ctx, ReleaseRequest{Key: f.key, Reference: "SO-1001"})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_ReleaseByReference_ExceedsHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	_, err := f.svc.Reserve(ctx, ReserveRequest{Key: f.key, Quantity: types.NewQuantity(30), Reference: "SO-1001"})
	require.NoError(t, err)

	_, err = f.svc.ReleaseByReference(ctx, ReleaseRequest{
		Key: f.key, Reference: "SO-1001", Quantity: types.NewQuantity(40),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	// A rejected release leaves the hold untouched.
	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(70), avail)
}

func TestService_ReleaseExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	expired, err := f.svc.Reserve(ctx, ReserveRequest{
		Key: f.key, Quantity: types.NewQuantity(25), TTL: time.Nanosecond,
	})
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, ReserveRequest{
		Key: f.key, Quantity: types.NewQuantity(10), TTL: time.Hour,
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	released, err := f.svc.ReleaseExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	stored, err := f.svc.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)

	avail, err := f.svc.Available(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(90), avail)

	// Sweep is idempotent.
	released, err = f.svc.ReleaseExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}
