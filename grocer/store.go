package grocer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)


type AlertFunction func(alert *Alert)


// the application state store of one client session
//
// Workflow actions call the services, interpret the results, and apply them to
// the state through mutations. The cart is never changed locally: every cart
// action changes the server cart first, then applies the server's answer.
//
// Actions may be called from any goroutine and may overlap. No error or panic
// escapes an action. Failures are logged or alerted through the notifier and
// resolved to the action's sentinel result. `MakePayment` is the exception and
// returns an `*ActionError`.
type Store struct {
	services *Services
	state *State
	notifier Notifier
	settings *StoreSettings
	metrics *StoreMetrics

	alerts *AlertHistory
	alertCallbacks *CallbackList[AlertFunction]

	dispatchSeq atomic.Uint64

	now func() time.Time
}

func NewStore(
	services *Services,
	sessionStorage SessionStorage,
	notifier Notifier,
	settings *StoreSettings,
	metrics *StoreMetrics,
) *Store {
	state := NewState(sessionStorage)
	state.staleCallback = metrics.staleDrop
	return &Store{
		services: services,
		state: state,
		notifier: notifier,
		settings: settings,
		metrics: metrics,
		alerts: NewAlertHistory(settings.AlertHistoryLimit),
		alertCallbacks: NewCallbackList[AlertFunction](),
		now: time.Now,
	}
}

func (self *Store) State() *State {
	return self.state
}

func (self *Store) AddStateChangeCallback(callback StateChangeFunction) func() {
	return self.state.AddStateChangeCallback(callback)
}

func (self *Store) AddAlertCallback(callback AlertFunction) func() {
	return self.alertCallbacks.Add(callback)
}

func (self *Store) Alerts() []*Alert {
	return self.alerts.Alerts()
}

func (self *Store) nextSeq() uint64 {
	return self.dispatchSeq.Add(1)
}

func (self *Store) alert(message string) {
	self.notifier.Alert(message)
	self.alerts.Alert(message)
	alert := &Alert{
		Message: message,
		Time: self.now(),
	}
	for _, callback := range self.alertCallbacks.Get() {
		HandleError(func() {
			callback(alert)
		})
	}
}

// `An error occurred.<msg>`, with the service message appended as is
func (self *Store) alertError(err error) {
	self.alert(fmt.Sprintf("%s.%s", AlertErrorOccurred, errorMessage(err)))
}


// runs one action body, recovering panics to `failed` and recording the outcome
func storeAction[R any](self *Store, action string, failed R, do func() (R, bool)) (result R) {
	start := time.Now()
	result = failed
	ok := false
	HandleError(func() {
		Trace(fmt.Sprintf("[store]%s", action), func() {
			result, ok = do()
		})
	}, func() {
		result = failed
		ok = false
	})
	outcome := OutcomeOk
	if !ok {
		outcome = OutcomeFailed
	}
	glog.V(1).Infof("[store]%s = %s\n", action, outcome)
	self.metrics.observe(action, outcome, start)
	return
}

func storeVoidAction(self *Store, action string, do func() bool) {
	storeAction(self, action, false, func() (bool, bool) {
		ok := do()
		return ok, ok
	})
}


// derived state with lazy expiry

// true when the session token is present and not expired
// an expired or malformed token invalidates the session as a side effect,
// so callers must not treat this as a pure read. Use `State().IsAuthenticated` for that
func (self *Store) IsAuthenticated() bool {
	token := self.state.Token()
	if token == "" {
		return false
	}
	if IsTokenExpired(token, self.now()) {
		if self.state.invalidateToken(token) {
			glog.V(1).Infof("[store]session expired\n")
		}
		return false
	}
	return true
}

// clears the session identity and token, locally and in session storage
func (self *Store) InvalidateSession() {
	self.state.setLoggedIn("")
	self.state.setToken("")
}


type StoreSnapshot struct {
	*StateSnapshot
	Authenticated bool `json:"authenticated"`
	Alerts []*Alert `json:"alerts"`
}

func (self *Store) Snapshot() *StoreSnapshot {
	authenticated := self.IsAuthenticated()
	return &StoreSnapshot{
		StateSnapshot: self.state.Snapshot(),
		Authenticated: authenticated,
		Alerts: self.alerts.Alerts(),
	}
}


// workflow actions

// false on any failure. the cause is not reported
func (self *Store) Login(ctx context.Context, credentials *Credentials) bool {
	return storeAction(self, "login", false, func() (bool, bool) {
		result, err := self.services.Auth.Login(ctx, credentials)
		if err != nil {
			glog.V(1).Infof("[store]login error = %s\n", err)
			return false, false
		}
		if result == nil || result.Data == nil || result.Data.Token == "" || result.Data.Customer.IsEmpty() || result.Data.Customer.CustomerId == "" {
			glog.V(1).Infof("[store]login malformed response\n")
			return false, false
		}
		self.state.setLoggedIn(result.Data.Customer.CustomerId)
		self.state.setToken(result.Data.Token)
		return true, true
	})
}

// the session is always cleared locally, even when the remote logout fails
func (self *Store) Logout(ctx context.Context) {
	storeVoidAction(self, "logout", func() bool {
		var err error
		HandleError(func() {
			err = self.services.Auth.Logout(ctx, self.state.Token())
		}, func(panicErr error) {
			err = panicErr
		})
		if err != nil {
			glog.Infof("[store]logout error = %s\n", err)
		}

		self.InvalidateSession()
		if self.settings.ClearOnLogout {
			seq := self.nextSeq()
			self.state.setCustomer(seq, nil)
			self.state.setCart(seq, nil)
			self.state.setPaymentKey(seq, "")
		}
		return err == nil
	})
}

// replaces the catalog and its per-category grouping
func (self *Store) FetchCatalog(ctx context.Context) {
	storeVoidAction(self, "fetch_catalog", func() bool {
		seq := self.nextSeq()
		result, err := self.services.Catalog.GetGroceries(ctx)
		if err != nil {
			glog.Infof("[store]fetch catalog error = %s\n", err)
			return false
		}
		if result == nil || result.Data == nil {
			glog.Infof("[store]fetch catalog malformed response\n")
			return false
		}
		self.state.setGroceries(seq, result.Data.Groceries)
		return true
	})
}

// `no items found` is a valid empty cart, every other non-success leaves the cart as it was
func (self *Store) FetchCart(ctx context.Context) {
	storeVoidAction(self, "fetch_cart", func() bool {
		return self.fetchCart(ctx)
	})
}

func (self *Store) fetchCart(ctx context.Context) bool {
	seq := self.nextSeq()
	result, err := self.services.Cart.GetCart(ctx, self.state.Token())
	if err != nil {
		glog.V(1).Infof("[store]fetch cart error = %s\n", err)
		self.alert(AlertErrorOccurred)
		return false
	}
	msg := ""
	if result != nil {
		msg = result.Msg
	}
	switch msg {
	case MsgSuccess:
		var cartItems []*CartItem
		if result.Data != nil {
			cartItems = result.Data.Items
		}
		self.state.setCart(seq, cartItems)
		return true
	case MsgNoItemsFound:
		self.state.setCart(seq, []*CartItem{})
		return true
	default:
		glog.V(1).Infof("[store]fetch cart msg = %s\n", msg)
		self.alert(AlertErrorOccurred)
		return false
	}
}

// failures are logged only
func (self *Store) FetchCustomer(ctx context.Context) {
	storeVoidAction(self, "fetch_customer", func() bool {
		seq := self.nextSeq()
		result, err := self.services.Auth.GetCustomer(ctx, self.state.Token())
		if err != nil {
			glog.Infof("[store]fetch customer error = %s\n", err)
			return false
		}
		if result == nil || result.Data == nil {
			glog.Infof("[store]fetch customer malformed response\n")
			return false
		}
		self.state.setCustomer(seq, result.Data.Customer)
		return true
	})
}

// adds remotely, then refetches the whole cart instead of merging the line
func (self *Store) AddToCart(ctx context.Context, add *AddToCartArgs) {
	storeVoidAction(self, "add_to_cart", func() bool {
		_, err := self.services.Cart.AddToCart(ctx, self.state.Token(), add)
		if err != nil {
			glog.Infof("[store]add to cart error = %s\n", err)
			return false
		}
		self.FetchCart(ctx)
		return true
	})
}

func (self *Store) EmptyCart(ctx context.Context) {
	storeVoidAction(self, "empty_cart", func() bool {
		result, err := self.services.Cart.EmptyCart(ctx, self.state.Token())
		if err != nil {
			self.alertError(err)
			return false
		}
		if !result.Success() {
			self.alert(AlertFailedToEmpty)
			return false
		}
		self.FetchCart(ctx)
		return true
	})
}

// applies the cart returned by the remove call directly, without a refetch
func (self *Store) RemoveItemFromCart(ctx context.Context, groceryId GroceryId) {
	storeVoidAction(self, "remove_item_from_cart", func() bool {
		seq := self.nextSeq()
		result, err := self.services.Cart.RemoveItemFromCart(ctx, self.state.Token(), groceryId)
		if err != nil {
			self.alertError(err)
			return false
		}
		if !result.Success() {
			self.alert(AlertFailedToRemove)
			return false
		}
		var cartItems []*CartItem
		if result.Data != nil {
			cartItems = result.Data.Items
		}
		self.state.setCart(seq, cartItems)
		return true
	})
}

// returns the order only after the cart has been emptied
// the cart is unchanged when checkout fails
func (self *Store) CheckoutCart(ctx context.Context) (Order, bool) {
	type checkout struct {
		order Order
		ok bool
	}
	c := storeAction(self, "checkout_cart", checkout{}, func() (checkout, bool) {
		result, err := self.services.Cart.CheckoutCart(ctx, self.state.Token())
		if err != nil {
			self.alertError(err)
			return checkout{}, false
		}
		if !result.Success() {
			glog.V(1).Infof("[store]checkout not completed\n")
			return checkout{}, false
		}
		self.EmptyCart(ctx)
		order := result.Data
		if order == nil {
			order = Order{}
		}
		return checkout{order: order, ok: true}, true
	})
	return c.order, c.ok
}

// reports the outcome to the user only
func (self *Store) RateGrocery(ctx context.Context, rate *RateArgs) {
	storeVoidAction(self, "rate_grocery", func() bool {
		err := self.services.Catalog.RateGrocery(ctx, self.state.Token(), rate)
		if err != nil {
			self.alertError(err)
			return false
		}
		self.alert(AlertRateSent)
		return true
	})
}

func (self *Store) FetchPaymentPublicKey(ctx context.Context) {
	storeVoidAction(self, "fetch_payment_public_key", func() bool {
		seq := self.nextSeq()
		result, err := self.services.Payment.GetPublicKey(ctx, self.state.Token())
		if err != nil {
			// separated by a space, unlike `alertError`
			self.alert(fmt.Sprintf("%s. %s", AlertErrorOccurred, errorMessage(err)))
			return false
		}
		if result == nil || result.Data == nil {
			self.alert(AlertErrorOccurred)
			return false
		}
		self.state.setPaymentKey(seq, result.Data.PaymentKey)
		return true
	})
}

// the failure is alerted and also returned as an `*ActionError`
func (self *Store) MakePayment(ctx context.Context, payment *PaymentArgs) (PaymentResult, error) {
	type paid struct {
		result PaymentResult
		err error
	}
	p := storeAction(
		self,
		"make_payment",
		paid{err: NewActionError("make_payment", fmt.Errorf("payment did not complete"))},
		func() (paid, bool) {
			result, err := self.services.Payment.MakePayment(ctx, self.state.Token(), payment)
			if err != nil {
				self.alert(errorMessage(err))
				return paid{err: NewActionError("make_payment", err)}, false
			}
			if result == nil {
				result = PaymentResult{}
			}
			return paid{result: result}, true
		},
	)
	return p.result, p.err
}

// success is logged. failure is alerted. state is not changed
func (self *Store) SetDeliveryLocation(ctx context.Context, orderId string, location *DeliveryLocation) bool {
	return storeAction(self, "set_delivery_location", false, func() (bool, bool) {
		result, err := self.services.Order.SetDeliveryLocation(ctx, self.state.Token(), orderId, location)
		if err != nil {
			self.alert(errorMessage(err))
			return false, false
		}
		glog.Infof("[store]set delivery location %s = %v\n", orderId, result)
		return true, true
	})
}

// success is logged. failure is alerted. state is not changed
func (self *Store) ScheduleOrder(ctx context.Context, schedule *ScheduleArgs) bool {
	return storeAction(self, "schedule_order", false, func() (bool, bool) {
		result, err := self.services.Order.ScheduleOrder(ctx, self.state.Token(), schedule)
		if err != nil {
			self.alert(errorMessage(err))
			return false, false
		}
		glog.Infof("[store]schedule order = %v\n", result)
		return true, true
	})
}

// loads what a view needs on start: the catalog, and the customer and cart when authenticated
func (self *Store) Hydrate(ctx context.Context) {
	self.FetchCatalog(ctx)
	if self.IsAuthenticated() {
		self.FetchCustomer(ctx)
		self.FetchCart(ctx)
	}
}
