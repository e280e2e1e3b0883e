// Package store holds the shell's client-side state and persists it across
// restarts.
package store

import (
	"sync"
	"time"
)

// CartItem is a product line in the cart.
type CartItem struct {
	ProductID   int64  `msgpack:"product_id" json:"productId"`
	VariationID int64  `msgpack:"variation_id,omitempty" json:"variationId,omitempty"`
	Quantity    int    `msgpack:"quantity" json:"quantity"`
	Name        string `msgpack:"name" json:"name"`
}

// Customer is the signed-in shopper, if any.
type Customer struct {
	ID    int64  `msgpack:"id" json:"id"`
	Email string `msgpack:"email" json:"email"`
	Name  string `msgpack:"name" json:"name"`
}

// State is the persisted application state.
type State struct {
	Language  string     `msgpack:"language" json:"language"`
	Currency  string     `msgpack:"currency" json:"currency"`
	Customer  *Customer  `msgpack:"customer,omitempty" json:"customer,omitempty"`
	Cart      []CartItem `msgpack:"cart" json:"cart"`
	Wishlist  []int64    `msgpack:"wishlist" json:"wishlist"`
	UpdatedAt time.Time  `msgpack:"updated_at" json:"updatedAt"`
}

// clone returns a deep copy so callers never share slices with the store.
func (s State) clone() State {
	out := s
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	out.Cart = append([]CartItem(nil), s.Cart...)
	out.Wishlist = append([]int64(nil), s.Wishlist...)
	return out
}

// Store is the single state container for the shell. It is created once at
// process start and passed explicitly to whoever needs it.
type Store struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)
	now    func() time.Time
}

// New returns a Store holding initial.
func New(initial State) *Store {
	return &Store{
		state: initial.clone(),
		subs:  make(map[int]func(State)),
		now:   time.Now,
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Update applies fn to the state and notifies subscribers.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	next := s.state.clone()
	fn(&next)
	next.UpdatedAt = s.now()
	s.state = next
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.notify(subs, next)
}

// replace swaps in a rehydrated state without touching UpdatedAt.
func (s *Store) replace(st State) {
	s.mu.Lock()
	s.state = st.clone()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	s.notify(subs, st)
}

// Subscribe registers fn to run after every change. The returned func
// removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotSubs() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func (s *Store) notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st.clone())
	}
}

// AddToCart adds quantity of a product, merging with an existing line.
func (s *Store) AddToCart(item CartItem) {
	s.Update(func(st *State) {
		for i := range st.Cart {
			if st.Cart[i].ProductID == item.ProductID && st.Cart[i].VariationID == item.VariationID {
				st.Cart[i].Quantity += item.Quantity
				return
			}
		}
		st.Cart = append(st.Cart, item)
	})
}

// ToggleWishlist adds or removes a product id.
func (s *Store) ToggleWishlist(productID int64) {
	s.Update(func(st *State) {
		for i, id := range st.Wishlist {
			if id == productID {
				st.Wishlist = append(st.Wishlist[:i], st.Wishlist[i+1:]...)
				return
			}
		}
		st.Wishlist = append(st.Wishlist, productID)
	})
}
