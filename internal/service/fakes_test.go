package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
)

// In-memory collaborators for the service tests. They keep the same race
// semantics as the real repositories: max+1 numbering under uniqueness,
// compare-and-set on status, token primary key collisions.

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order

	// takenFailures makes the next N Creates lose the number race.
	takenFailures int

	// beforeReplace runs at the top of ReplaceLines, before the lock,
	// so tests can interleave a competing status change.
	beforeReplace func()
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenFailures > 0 {
		r.takenFailures--
		return repository.ErrOrderNumberTaken
	}

	var max int64
	for _, o := range r.orders {
		if o.Number > max {
			max = o.Number
		}
	}
	order.Number = max + 1
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt

	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *fakeOrderRepo) ReplaceLines(_ context.Context, order *domain.Order, from domain.OrderStatus) error {
	if r.beforeReplace != nil {
		r.beforeReplace()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Status != from {
		return repository.ErrStatusConflict
	}

	stored.Lines = order.Lines
	stored.Total = order.Total
	stored.CustomerID = order.CustomerID
	stored.Status = order.Status
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Status != from {
		return repository.ErrStatusConflict
	}

	stored.Status = to
	return nil
}

func (r *fakeOrderRepo) SetPayment(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Status.IsTerminal() {
		return repository.ErrStatusConflict
	}

	stored.PaymentMethod = order.PaymentMethod
	stored.AmountReceived = order.AmountReceived
	stored.Change = order.Change
	stored.Tips = order.Tips
	return nil
}

func (r *fakeOrderRepo) ListWindow(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Order
	for _, o := range r.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			result = append(result, *o)
		}
	}
	return result, nil
}

type overrideKey struct {
	productID uuid.UUID
	addOnID   uuid.UUID
}

type fakeCatalogRepo struct {
	products  map[uuid.UUID]*domain.CatalogProduct
	overrides map[overrideKey]int64
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products:  make(map[uuid.UUID]*domain.CatalogProduct),
		overrides: make(map[overrideKey]int64),
	}
}

func (r *fakeCatalogRepo) addProduct(name string, price int64, isAddOn bool) uuid.UUID {
	id := uuid.New()
	r.products[id] = &domain.CatalogProduct{
		ID:      id,
		Name:    name,
		Price:   price,
		IsAddOn: isAddOn,
		Active:  true,
	}
	return id
}

func (r *fakeCatalogRepo) GetActiveProduct(_ context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	p, ok := r.products[id]
	if !ok || !p.Active {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (r *fakeCatalogRepo) GetActiveAddOnOverride(_ context.Context, productID, addOnID uuid.UUID) (*int64, error) {
	price, ok := r.overrides[overrideKey{productID, addOnID}]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

type fakeLoyaltyRepo struct {
	mu     sync.Mutex
	points map[uuid.UUID]int64
	calls  int
	err    error
}

func newFakeLoyaltyRepo() *fakeLoyaltyRepo {
	return &fakeLoyaltyRepo{points: make(map[uuid.UUID]int64)}
}

func (r *fakeLoyaltyRepo) AddPoints(_ context.Context, customerID uuid.UUID, points int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil {
		return r.err
	}
	r.points[customerID] += points
	return nil
}

func (r *fakeLoyaltyRepo) GetBalance(_ context.Context, customerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[customerID], nil
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *fakeAuditRecorder) Record(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

type fakeShortLinkRepo struct {
	mu    sync.Mutex
	links map[string]*domain.ShortLink

	// takenFailures makes the next N Inserts collide.
	takenFailures int
}

func newFakeShortLinkRepo() *fakeShortLinkRepo {
	return &fakeShortLinkRepo{links: make(map[string]*domain.ShortLink)}
}

func (r *fakeShortLinkRepo) Insert(_ context.Context, link *domain.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenFailures > 0 {
		r.takenFailures--
		return repository.ErrTokenTaken
	}
	if _, exists := r.links[link.Token]; exists {
		return repository.ErrTokenTaken
	}

	link.CreatedAt = time.Now().UTC()
	clone := *link
	r.links[link.Token] = &clone
	return nil
}

func (r *fakeShortLinkRepo) FindByToken(_ context.Context, token string) (*domain.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[token]
	if !ok {
		return nil, repository.ErrShortLinkNotFound
	}
	clone := *link
	return &clone, nil
}
