// Package documenttest provides in-memory document repositories for unit
// tests. They mirror the cross-document sum queries the Postgres
// repositories run, so lifecycle tests can exercise full confirm, edit and
// delete flows without a database.
package documenttest

import (
	"context"
	"sort"
	"sync"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/domain/documents/receiving"
)

// --- Purchase orders ---

// OrderRepository is an in-memory purchase_order.Repository.
type OrderRepository struct {
	mu    sync.Mutex
	docs  map[id.ID]purchase_order.PurchaseOrder
	lines map[id.ID][]purchase_order.Line
}

var _ purchase_order.Repository = (*OrderRepository)(nil)

// NewOrderRepository creates an empty repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		docs:  make(map[id.ID]purchase_order.PurchaseOrder),
		lines: make(map[id.ID][]purchase_order.Line),
	}
}

func (r *OrderRepository) Create(_ context.Context, doc *purchase_order.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, docID id.ID) (*purchase_order.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", docID)
	}
	out := doc
	return &out, nil
}

func (r *OrderRepository) Update(_ context.Context, doc *purchase_order.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("purchase order", doc.ID)
	}
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *OrderRepository) Delete(_ context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return apperror.NewNotFound("purchase order", docID)
	}
	doc.MarkDeleted()
	r.docs[docID] = doc
	return nil
}

func (r *OrderRepository) GetLines(_ context.Context, docID id.ID) ([]purchase_order.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]purchase_order.Line, len(r.lines[docID]))
	copy(out, r.lines[docID])
	return out, nil
}

func (r *OrderRepository) SaveLines(_ context.Context, docID id.ID, lines []purchase_order.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]purchase_order.Line, len(lines))
	copy(stored, lines)
	r.lines[docID] = stored
	return nil
}

func (r *OrderRepository) SetLineReceivedQuantities(_ context.Context, docID id.ID, received map[id.ID]types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines[docID]
	for i := range lines {
		lines[i].ReceivedQuantity = received[lines[i].LineID]
	}
	return nil
}

func (r *OrderRepository) List(_ context.Context, filter purchase_order.ListFilter) (domain.ListResult[*purchase_order.PurchaseOrder], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*purchase_order.PurchaseOrder
	for docID, doc := range r.docs {
		if doc.DeletionMark && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if !id.IsNil(filter.SupplierID) && doc.SupplierID != filter.SupplierID {
			continue
		}
		out := doc
		out.Lines = append([]purchase_order.Line(nil), r.lines[docID]...)
		items = append(items, &out)
	}
	sortByNumberPO(items)
	return domain.ListResult[*purchase_order.PurchaseOrder]{
		Items:      items,
		TotalCount: int64(len(items)),
	}, nil
}

func sortByNumberPO(items []*purchase_order.PurchaseOrder) {
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
}

// --- Receivings ---

// ReceivingRepository is an in-memory receiving.Repository.
type ReceivingRepository struct {
	mu    sync.Mutex
	docs  map[id.ID]receiving.Receiving
	lines map[id.ID][]receiving.Line
}

var _ receiving.Repository = (*ReceivingRepository)(nil)

// NewReceivingRepository creates an empty repository.
func NewReceivingRepository() *ReceivingRepository {
	return &ReceivingRepository{
		docs:  make(map[id.ID]receiving.Receiving),
		lines: make(map[id.ID][]receiving.Line),
	}
}

func (r *ReceivingRepository) Create(_ context.Context, doc *receiving.Receiving) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *ReceivingRepository) GetByID(_ context.Context, docID id.ID) (*receiving.Receiving, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("receiving", docID)
	}
	out := doc
	return &out, nil
}

func (r *ReceivingRepository) Update(_ context.Context, doc *receiving.Receiving) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("receiving", doc.ID)
	}
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *ReceivingRepository) Delete(_ context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return apperror.NewNotFound("receiving", docID)
	}
	doc.MarkDeleted()
	r.docs[docID] = doc
	return nil
}

func (r *ReceivingRepository) GetLines(_ context.Context, docID id.ID) ([]receiving.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]receiving.Line, len(r.lines[docID]))
	copy(out, r.lines[docID])
	return out, nil
}

func (r *ReceivingRepository) SaveLines(_ context.Context, docID id.ID, lines []receiving.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]receiving.Line, len(lines))
	copy(stored, lines)
	r.lines[docID] = stored
	return nil
}

func (r *ReceivingRepository) SetLineReturnedQuantities(_ context.Context, docID id.ID, returned map[id.ID]types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines[docID]
	for i := range lines {
		lines[i].ReturnedQuantity = returned[lines[i].LineID]
	}
	return nil
}

func (r *ReceivingRepository) SumReceivedByOrderLine(_ context.Context, orderID id.ID) (map[id.ID]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sums := make(map[id.ID]types.Quantity)
	for docID, doc := range r.docs {
		if doc.OrderID != orderID || !doc.Confirmed || doc.DeletionMark {
			continue
		}
		for _, line := range r.lines[docID] {
			if line.OrderLineID != nil {
				sums[*line.OrderLineID] += line.Quantity
			}
		}
	}
	return sums, nil
}

func (r *ReceivingRepository) List(_ context.Context, filter receiving.ListFilter) (domain.ListResult[*receiving.Receiving], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*receiving.Receiving
	for docID, doc := range r.docs {
		if doc.DeletionMark && !filter.IncludeDeleted {
			continue
		}
		if !id.IsNil(filter.OrderID) && doc.OrderID != filter.OrderID {
			continue
		}
		out := doc
		out.Lines = append([]receiving.Line(nil), r.lines[docID]...)
		items = append(items, &out)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return domain.ListResult[*receiving.Receiving]{
		Items:      items,
		TotalCount: int64(len(items)),
	}, nil
}

// --- Purchase returns ---

// ReturnRepository is an in-memory purchase_return.Repository.
type ReturnRepository struct {
	mu    sync.Mutex
	docs  map[id.ID]purchase_return.PurchaseReturn
	lines map[id.ID][]purchase_return.Line
}

var _ purchase_return.Repository = (*ReturnRepository)(nil)

// ReturnRepository also serves receiving-side returned sums.
var _ receiving.ReturnedQuantitySource = (*ReturnRepository)(nil)

// NewReturnRepository creates an empty repository.
func NewReturnRepository() *ReturnRepository {
	return &ReturnRepository{
		docs:  make(map[id.ID]purchase_return.PurchaseReturn),
		lines: make(map[id.ID][]purchase_return.Line),
	}
}

func (r *ReturnRepository) Create(_ context.Context, doc *purchase_return.PurchaseReturn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *ReturnRepository) GetByID(_ context.Context, docID id.ID) (*purchase_return.PurchaseReturn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("purchase return", docID)
	}
	out := doc
	return &out, nil
}

func (r *ReturnRepository) Update(_ context.Context, doc *purchase_return.PurchaseReturn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("purchase return", doc.ID)
	}
	stored := *doc
	stored.Lines = nil
	r.docs[doc.ID] = stored
	return nil
}

func (r *ReturnRepository) Delete(_ context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return apperror.NewNotFound("purchase return", docID)
	}
	doc.MarkDeleted()
	r.docs[docID] = doc
	return nil
}

func (r *ReturnRepository) GetLines(_ context.Context, docID id.ID) ([]purchase_return.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]purchase_return.Line, len(r.lines[docID]))
	copy(out, r.lines[docID])
	return out, nil
}

func (r *ReturnRepository) SaveLines(_ context.Context, docID id.ID, lines []purchase_return.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]purchase_return.Line, len(lines))
	copy(stored, lines)
	r.lines[docID] = stored
	return nil
}

func (r *ReturnRepository) SumReturnedByReceivingLine(_ context.Context, receivingID id.ID) (map[id.ID]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sums := make(map[id.ID]types.Quantity)
	for docID, doc := range r.docs {
		if doc.ReceivingID != receivingID || !doc.Confirmed || doc.DeletionMark {
			continue
		}
		for _, line := range r.lines[docID] {
			sums[line.ReceivingLineID] += line.Quantity
		}
	}
	return sums, nil
}

func (r *ReturnRepository) List(_ context.Context, filter purchase_return.ListFilter) (domain.ListResult[*purchase_return.PurchaseReturn], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*purchase_return.PurchaseReturn
	for docID, doc := range r.docs {
		if doc.DeletionMark && !filter.IncludeDeleted {
			continue
		}
		if !id.IsNil(filter.ReceivingID) && doc.ReceivingID != filter.ReceivingID {
			continue
		}
		out := doc
		out.Lines = append([]purchase_return.Line(nil), r.lines[docID]...)
		items = append(items, &out)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return domain.ListResult[*purchase_return.PurchaseReturn]{
		Items:      items,
		TotalCount: int64(len(items)),
	}, nil
}

// NopTxManager runs functions directly without transactions.
type NopTxManager struct{}

// RunInTransaction implements tx.Manager.
func (NopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
