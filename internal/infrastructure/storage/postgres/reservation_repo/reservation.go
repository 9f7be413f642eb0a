// Package reservation_repo provides the PostgreSQL implementation of the
// reservation repository.
package reservation_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/domain/reservation"
	"procura/internal/infrastructure/storage/postgres"
)

const table = "reservations"

var columns = []string{
	"id", "deletion_mark", "version",
	"product_id", "warehouse_id", "location_id",
	"quantity", "status", "reference",
	"expires_at", "created_at", "released_at",
}

// Repo implements reservation.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ reservation.Repository = (*Repo)(nil)

// NewRepo creates a new reservation repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) Create(ctx context.Context, res reservation.Reservation) error {
	q := r.builder.Insert(table).
		Columns(columns...).
		Values(
			res.ID, res.DeletionMark, res.Version,
			res.ProductID, res.WarehouseID, res.LocationID,
			res.Quantity, res.Status, res.Reference,
			res.ExpiresAt, res.CreatedAt, res.ReleasedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

func (r *Repo) GetByID(ctx context.Context, reservationID id.ID) (reservation.Reservation, error) {
	return r.get(ctx, reservationID, false)
}

func (r *Repo) GetByIDForUpdate(ctx context.Context, reservationID id.ID) (reservation.Reservation, error) {
	return r.get(ctx, reservationID, true)
}

func (r *Repo) get(ctx context.Context, reservationID id.ID, forUpdate bool) (reservation.Reservation, error) {
	q := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": reservationID}).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("build query: %w", err)
	}

	var res reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &res, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return reservation.Reservation{}, apperror.NewNotFound("reservation", reservationID)
		}
		return reservation.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}

	return res, nil
}

// Update persists the mutable fields. Callers Touch the entity first, so
// the stored row must still be one version behind.
func (r *Repo) Update(ctx context.Context, res reservation.Reservation) error {
	q := r.builder.Update(table).
		Set("status", res.Status).
		Set("released_at", res.ReleasedAt).
		Set("expires_at", res.ExpiresAt).
		Set("version", res.Version).
		Where(squirrel.Eq{"id": res.ID}).
		Where(squirrel.Eq{"version": res.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("reservation", res.ID)
	}

	return nil
}

func (r *Repo) ListActiveByKey(ctx context.Context, key entity.StockKey) ([]reservation.Reservation, error) {
	q := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
			"location_id":  key.LocationID,
			"status":       reservation.StatusActive,
		}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &list, sql, args...); err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}

	return list, nil
}

// ListActiveByReferenceForUpdate locks the matched rows so a release
// settles against a stable snapshot of what the reference holds.
func (r *Repo) ListActiveByReferenceForUpdate(ctx context.Context, key entity.StockKey, reference string) ([]reservation.Reservation, error) {
	q := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
			"location_id":  key.LocationID,
			"reference":    reference,
			"status":       reservation.StatusActive,
		}).
		OrderBy("created_at").
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &list, sql, args...); err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}

	return list, nil
}

// ListExpired locks the returned rows so concurrent sweeps do not release
// the same reservation twice. SKIP LOCKED lets sweeps run in parallel.
func (r *Repo) ListExpired(ctx context.Context, now time.Time, limit int) ([]reservation.Reservation, error) {
	q := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"status": reservation.StatusActive}).
		Where("expires_at IS NOT NULL").
		Where(squirrel.Lt{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &list, sql, args...); err != nil {
		return nil, fmt.Errorf("select expired reservations: %w", err)
	}

	return list, nil
}
