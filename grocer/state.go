package grocer

import (
	"sync"
	"time"

	"github.com/golang/glog"
)


type StateField string

const (
	StateFieldIdentity StateField = "identity"
	StateFieldToken StateField = "token"
	StateFieldCatalog StateField = "catalog"
	StateFieldCustomer StateField = "customer"
	StateFieldCart StateField = "cart"
	StateFieldPaymentKey StateField = "payment_key"
)


type StateChange struct {
	Field StateField
	// dispatch sequence of the response that produced the change. 0 for session changes
	Seq uint64
}

type StateChangeFunction func(change StateChange)


// session, catalog, and cart state of one client session
//
// Accessors are safe to call from any goroutine and return copies.
// Mutations are unexported. Only the store's workflow actions change state.
// Each data mutation carries the dispatch sequence of the response it applies,
// and a mutation older than the last one applied to the same field is dropped.
type State struct {
	sessionStorage SessionStorage

	stateLock sync.Mutex
	customerId string
	token string
	groceries []*Grocery
	categories *GroupedCatalog
	customer *Customer
	cartItems []*CartItem
	paymentKey string
	appliedSeqs map[StateField]uint64

	stateChangeCallbacks *CallbackList[StateChangeFunction]
	staleCallback func(field StateField)
}

// hydrates the session identity and token from `sessionStorage`
// presence only, validity is derived when read
func NewState(sessionStorage SessionStorage) *State {
	customerId, token := hydrateSession(sessionStorage)
	return &State{
		sessionStorage: sessionStorage,
		customerId: customerId,
		token: token,
		groceries: []*Grocery{},
		categories: GroupByCategory(nil),
		customer: &Customer{},
		cartItems: []*CartItem{},
		appliedSeqs: map[StateField]uint64{},
		stateChangeCallbacks: NewCallbackList[StateChangeFunction](),
	}
}

// the persisted user id must agree with the customer claim of the persisted token
// a missing user id is restored from the claim. a mismatched pair is dropped from storage
func hydrateSession(sessionStorage SessionStorage) (customerId string, token string) {
	customerId, _ = sessionStorage.Get(SessionKeyUserId)
	token, _ = sessionStorage.Get(SessionKeyToken)
	if token == "" {
		return
	}
	sessionJwt, err := ParseSessionJwtUnverified(token)
	if err != nil || sessionJwt.CustomerId == "" {
		return
	}
	switch customerId {
	case sessionJwt.CustomerId:
	case "":
		glog.Infof("[state]restored user id from token\n")
		customerId = sessionJwt.CustomerId
		if err := sessionStorage.Set(SessionKeyUserId, customerId); err != nil {
			glog.Warningf("[state]persist %s error = %s\n", SessionKeyUserId, err)
		}
	default:
		glog.Warningf("[state]persisted user id does not match the token. dropping the session\n")
		customerId = ""
		token = ""
		for _, key := range []string{SessionKeyUserId, SessionKeyToken} {
			if err := sessionStorage.Remove(key); err != nil {
				glog.Warningf("[state]persist %s error = %s\n", key, err)
			}
		}
	}
	return
}

func (self *State) AddStateChangeCallback(callback StateChangeFunction) func() {
	return self.stateChangeCallbacks.Add(callback)
}

func (self *State) changed(field StateField, seq uint64) {
	change := StateChange{
		Field: field,
		Seq: seq,
	}
	for _, callback := range self.stateChangeCallbacks.Get() {
		HandleError(func() {
			callback(change)
		})
	}
}


// derived state

// pure. an expired token stays in place until the session is invalidated
func (self *State) IsAuthenticated(now time.Time) bool {
	return !IsTokenExpired(self.Token(), now)
}

func (self *State) Token() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.token
}

func (self *State) CustomerId() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.customerId
}

func (self *State) Groceries() []*Grocery {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	groceries := make([]*Grocery, len(self.groceries))
	copy(groceries, self.groceries)
	return groceries
}

func (self *State) GroupedCatalog() *GroupedCatalog {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	// grouped catalogs are replaced, never modified
	return self.categories
}

func (self *State) Customer() *Customer {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	customer := *self.customer
	return &customer
}

func (self *State) CartItems() []*CartItem {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	cartItems := make([]*CartItem, len(self.cartItems))
	copy(cartItems, self.cartItems)
	return cartItems
}

func (self *State) CartSize() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.cartItems)
}

func (self *State) CartItemIds() []GroceryId {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	groceryIds := make([]GroceryId, 0, len(self.cartItems))
	for _, cartItem := range self.cartItems {
		groceryIds = append(groceryIds, cartItem.GroceryId)
	}
	return groceryIds
}

func (self *State) PaymentKey() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.paymentKey
}


type StateSnapshot struct {
	CustomerId string `json:"customer_id"`
	Token string `json:"-"`
	Groceries []*Grocery `json:"groceries"`
	Categories *GroupedCatalog `json:"categories"`
	Customer *Customer `json:"customer"`
	CartItems []*CartItem `json:"cart_items"`
	CartItemIds []GroceryId `json:"cart_item_ids"`
	CartSize int `json:"cart_size"`
	PaymentKey string `json:"payment_key"`
}

// all attributes read under one lock
func (self *State) Snapshot() *StateSnapshot {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	groceries := make([]*Grocery, len(self.groceries))
	copy(groceries, self.groceries)
	cartItems := make([]*CartItem, len(self.cartItems))
	copy(cartItems, self.cartItems)
	cartItemIds := make([]GroceryId, 0, len(self.cartItems))
	for _, cartItem := range self.cartItems {
		cartItemIds = append(cartItemIds, cartItem.GroceryId)
	}
	customer := *self.customer

	return &StateSnapshot{
		CustomerId: self.customerId,
		Token: self.token,
		Groceries: groceries,
		Categories: self.categories,
		Customer: &customer,
		CartItems: cartItems,
		CartItemIds: cartItemIds,
		CartSize: len(cartItems),
		PaymentKey: self.paymentKey,
	}
}


// mutations

func (self *State) setLoggedIn(customerId string) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.customerId = customerId
		self.persist(SessionKeyUserId, customerId)
	}()
	self.changed(StateFieldIdentity, 0)
}

func (self *State) setToken(token string) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.token = token
		self.persist(SessionKeyToken, token)
	}()
	self.changed(StateFieldToken, 0)
}

// clears identity and token only if the token is still `token`
// a session replaced since `token` was read is left alone
func (self *State) invalidateToken(token string) bool {
	invalidated := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.token != token {
			return false
		}
		self.customerId = ""
		self.token = ""
		self.persist(SessionKeyUserId, "")
		self.persist(SessionKeyToken, "")
		return true
	}()
	if invalidated {
		self.changed(StateFieldIdentity, 0)
		self.changed(StateFieldToken, 0)
	}
	return invalidated
}

// must be called with the state lock held
func (self *State) persist(key string, value string) {
	var err error
	if value == "" {
		err = self.sessionStorage.Remove(key)
	} else {
		err = self.sessionStorage.Set(key, value)
	}
	if err != nil {
		// the in-memory session stays authoritative for this process
		glog.Warningf("[state]persist %s error = %s\n", key, err)
	}
}

// must be called with the state lock held
func (self *State) claim(field StateField, seq uint64) bool {
	if seq < self.appliedSeqs[field] {
		return false
	}
	self.appliedSeqs[field] = seq
	return true
}

func (self *State) dropped(field StateField, seq uint64) {
	glog.V(1).Infof("[state]drop stale %s seq = %d\n", field, seq)
	if self.staleCallback != nil {
		self.staleCallback(field)
	}
}

// replaces the catalog and its grouping together
func (self *State) setGroceries(seq uint64, groceries []*Grocery) bool {
	if groceries == nil {
		groceries = []*Grocery{}
	}
	categories := GroupByCategory(groceries)
	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if !self.claim(StateFieldCatalog, seq) {
			return false
		}
		self.groceries = groceries
		self.categories = categories
		return true
	}()
	if !applied {
		self.dropped(StateFieldCatalog, seq)
		return false
	}
	self.changed(StateFieldCatalog, seq)
	return true
}

func (self *State) setCart(seq uint64, cartItems []*CartItem) bool {
	if cartItems == nil {
		cartItems = []*CartItem{}
	}
	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if !self.claim(StateFieldCart, seq) {
			return false
		}
		self.cartItems = cartItems
		return true
	}()
	if !applied {
		self.dropped(StateFieldCart, seq)
		return false
	}
	self.changed(StateFieldCart, seq)
	return true
}

func (self *State) setCustomer(seq uint64, customer *Customer) bool {
	if customer == nil {
		customer = &Customer{}
	}
	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if !self.claim(StateFieldCustomer, seq) {
			return false
		}
		self.customer = customer
		return true
	}()
	if !applied {
		self.dropped(StateFieldCustomer, seq)
		return false
	}
	self.changed(StateFieldCustomer, seq)
	return true
}

func (self *State) setPaymentKey(seq uint64, paymentKey string) bool {
	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if !self.claim(StateFieldPaymentKey, seq) {
			return false
		}
		self.paymentKey = paymentKey
		return true
	}()
	if !applied {
		self.dropped(StateFieldPaymentKey, seq)
		return false
	}
	self.changed(StateFieldPaymentKey, seq)
	return true
}
