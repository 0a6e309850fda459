package grocer

import (
	"context"
	"fmt"
)


// envelope messages used by the cart service
const (
	MsgSuccess = "success"
	MsgNoItemsFound = "no items found"
)


// `{msg, data}` is the response shape shared by all grocery services
type Envelope[D any] struct {
	Msg string `json:"msg,omitempty"`
	Data D `json:"data"`
}

func (self *Envelope[D]) Success() bool {
	return self != nil && self.Msg == MsgSuccess
}


// a rejected service call
type ApiError struct {
	StatusCode int
	Message string
}

func (self *ApiError) Error() string {
	if self.Message == "" {
		return fmt.Sprintf("status %d", self.StatusCode)
	}
	return self.Message
}


type Credentials struct {
	Email string `json:"email"`
	Password string `json:"password"`
}

type LoginData struct {
	Token string `json:"token"`
	Customer *Customer `json:"customer"`
}

type LoginResult = Envelope[*LoginData]


type CustomerData struct {
	Customer *Customer `json:"customer"`
}

type CustomerResult = Envelope[*CustomerData]


type GroceriesData struct {
	Groceries []*Grocery `json:"groceries"`
}

type GroceriesResult = Envelope[*GroceriesData]


type RateArgs struct {
	GroceryId GroceryId `json:"grocery_id"`
	Rating int `json:"rating"`
	Comment string `json:"comment,omitempty"`
}


type CartData struct {
	Items []*CartItem `json:"items"`
}

type CartResult = Envelope[*CartData]

type AddToCartArgs struct {
	GroceryId GroceryId `json:"grocery_id"`
	Quantity int `json:"quantity"`
}

type RemoveFromCartArgs struct {
	GroceryId GroceryId `json:"grocery_id"`
}

type CheckoutResult = Envelope[Order]


type PaymentKeyData struct {
	PaymentKey string `json:"payment_key"`
}

type PaymentKeyResult = Envelope[*PaymentKeyData]

type PaymentArgs struct {
	OrderId string `json:"order_id"`
	PaymentMethodId string `json:"payment_method_id"`
	Amount int64 `json:"amount"`
	Currency string `json:"currency,omitempty"`
}


type DeliveryLocation struct {
	Address string `json:"address"`
	Latitude float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type ScheduleArgs struct {
	OrderId string `json:"order_id"`
	// rfc3339
	DeliverAt string `json:"deliver_at"`
}

type OrderResult = Envelope[map[string]any]


// the collaborators of the store
// each call either resolves with the service's envelope or rejects with an error

type AuthService interface {
	Login(ctx context.Context, credentials *Credentials) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	GetCustomer(ctx context.Context, token string) (*CustomerResult, error)
}

type CatalogService interface {
	GetGroceries(ctx context.Context) (*GroceriesResult, error)
	RateGrocery(ctx context.Context, token string, rate *RateArgs) error
}

type CartService interface {
	GetCart(ctx context.Context, token string) (*CartResult, error)
	AddToCart(ctx context.Context, token string, add *AddToCartArgs) (*CartResult, error)
	EmptyCart(ctx context.Context, token string) (*CartResult, error)
	RemoveItemFromCart(ctx context.Context, token string, groceryId GroceryId) (*CartResult, error)
	CheckoutCart(ctx context.Context, token string) (*CheckoutResult, error)
}

type PaymentService interface {
	GetPublicKey(ctx context.Context, token string) (*PaymentKeyResult, error)
	MakePayment(ctx context.Context, token string, payment *PaymentArgs) (PaymentResult, error)
}

type OrderService interface {
	SetDeliveryLocation(ctx context.Context, token string, orderId string, location *DeliveryLocation) (*OrderResult, error)
	ScheduleOrder(ctx context.Context, token string, schedule *ScheduleArgs) (*OrderResult, error)
}


// all services behind one value, which is how `GroceryApi` is usually passed around
type Services struct {
	Auth AuthService
	Catalog CatalogService
	Cart CartService
	Payment PaymentService
	Order OrderService
}

func NewServices(api *GroceryApi) *Services {
	return &Services{
		Auth: api,
		Catalog: api,
		Cart: api,
		Payment: api,
		Order: api,
	}
}
