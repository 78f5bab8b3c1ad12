package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/queue"
	"github.com/iliyamo/storefront-identity/internal/repository"
)

type fakeCarts struct {
	mu       sync.Mutex
	carts    map[model.OwnerKey]*model.Cart
	failGet  error
	failSave error
}

func newFakeCarts(carts ...*model.Cart) *fakeCarts {
	f := &fakeCarts{carts: map[model.OwnerKey]*model.Cart{}}
	for _, c := range carts {
		f.carts[c.Owner] = c
	}
	return f
}

func (f *fakeCarts) Get(_ context.Context, owner model.OwnerKey) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	c, ok := f.carts[owner]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Items = append([]model.CartItem(nil), c.Items...)
	return &cp, nil
}

func (f *fakeCarts) Save(_ context.Context, c *model.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	f.carts[c.Owner] = c
	return nil
}

func (f *fakeCarts) Rekey(_ context.Context, from, to model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[from]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := f.carts[to]; exists {
		return repository.ErrConflict
	}
	delete(f.carts, from)
	c.Owner = to
	f.carts[to] = c
	return nil
}

func (f *fakeCarts) SaveAndDiscard(_ context.Context, c *model.Cart, discard model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	f.carts[c.Owner] = c
	delete(f.carts, discard)
	return nil
}

func (f *fakeCarts) Delete(_ context.Context, owner model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, owner)
	return nil
}

func (f *fakeCarts) has(owner model.OwnerKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.carts[owner]
	return ok
}

type fakeWishlists struct {
	mu    sync.Mutex
	lists map[model.OwnerKey]*model.Wishlist
}

func newFakeWishlists(lists ...*model.Wishlist) *fakeWishlists {
	f := &fakeWishlists{lists: map[model.OwnerKey]*model.Wishlist{}}
	for _, w := range lists {
		f.lists[w.Owner] = w
	}
	return f
}

func (f *fakeWishlists) Get(_ context.Context, owner model.OwnerKey) (*model.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.lists[owner]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *w
	cp.ProductIDs = append([]string(nil), w.ProductIDs...)
	return &cp, nil
}

func (f *fakeWishlists) Save(_ context.Context, w *model.Wishlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[w.Owner] = w
	return nil
}

func (f *fakeWishlists) Rekey(_ context.Context, from, to model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.lists[from]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := f.lists[to]; exists {
		return repository.ErrConflict
	}
	delete(f.lists, from)
	w.Owner = to
	f.lists[to] = w
	return nil
}

func (f *fakeWishlists) SaveAndDiscard(_ context.Context, w *model.Wishlist, discard model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[w.Owner] = w
	delete(f.lists, discard)
	return nil
}

func (f *fakeWishlists) Delete(_ context.Context, owner model.OwnerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, owner)
	return nil
}

type fakeProducts map[string]model.Product

func (f fakeProducts) GetProduct(_ context.Context, id string) (model.Product, error) {
	p, ok := f[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

// fakeOrders keeps guest orders by email and moves them on association.
type fakeOrders struct {
	mu     sync.Mutex
	guest  map[string]int
	owned  map[string]int
	fail   error
	emails []string
}

func (f *fakeOrders) AssociateGuestOrders(_ context.Context, email, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, email)
	if f.fail != nil {
		return 0, f.fail
	}
	n := f.guest[email]
	delete(f.guest, email)
	if f.owned == nil {
		f.owned = map[string]int{}
	}
	f.owned[userID] += n
	return int64(n), nil
}

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]model.User
	failGet error
}

func newFakeUsers(users ...model.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]model.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, email, name, hash, role string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u := model.User{ID: repository.NewUserID(), Email: email, Name: name, PasswordHash: hash, Role: role, IsActive: true}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return model.User{}, f.failGet
	}
	email = model.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

// fakeTokens applies the same compare-and-set rule as the SQL store: a
// token rotates only while it is active, under one lock.
type fakeTokens struct {
	mu      sync.Mutex
	records map[string]*model.RefreshToken
	now     func() time.Time
}

func newFakeTokens(now func() time.Time) *fakeTokens {
	return &fakeTokens{records: map[string]*model.RefreshToken{}, now: now}
}

func (f *fakeTokens) Store(_ context.Context, userID, raw string, exp time.Time, meta model.ClientMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[raw] = &model.RefreshToken{TokenHash: raw, UserID: userID, IssuedAt: f.now(), ExpiresAt: exp, ClientMeta: meta}
	return nil
}

func (f *fakeTokens) VerifyAndRotate(_ context.Context, raw string, next repository.NextRefresh) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	rec, ok := f.records[raw]
	switch {
	case !ok:
		return "", repository.ErrRefreshNotFound
	case rec.ReplacedByHash != nil:
		return rec.UserID, &repository.ReuseError{UserID: rec.UserID, RotatedAt: *rec.RevokedAt}
	case rec.RevokedAt != nil:
		return "", repository.ErrRefreshRevoked
	case !now.Before(rec.ExpiresAt):
		return "", repository.ErrRefreshExpired
	}
	succ := next.Raw
	rec.RevokedAt, rec.ReplacedByHash = &now, &succ
	f.records[next.Raw] = &model.RefreshToken{TokenHash: next.Raw, UserID: rec.UserID, IssuedAt: now, ExpiresAt: next.ExpiresAt, ClientMeta: next.Meta}
	return rec.UserID, nil
}

func (f *fakeTokens) Revoke(_ context.Context, raw string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	rec, ok := f.records[raw]
	if !ok || rec.RevokedAt != nil || !now.Before(rec.ExpiresAt) {
		return false, nil
	}
	rec.RevokedAt = &now
	return true, nil
}

func (f *fakeTokens) RevokeAll(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := f.now()
	for _, rec := range f.records {
		if rec.UserID == userID && rec.RevokedAt == nil && now.Before(rec.ExpiresAt) {
			rec.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) active(raw string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[raw]
	return ok && rec.Active(f.now())
}

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.SecurityEvent
}

func (r *recordingEvents) Publish(_ context.Context, ev queue.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recordingEvents) snapshot() []queue.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.SecurityEvent(nil), r.events...)
}

var errBoom = errors.New("boom")
