package grocer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/h2non/gock"
)


const testApiUrl = "http://grocer.test"

func newTestApi() *GroceryApi {
	api := NewGroceryApiWithDefaults(testApiUrl)
	gock.InterceptClient(api.HttpClient())
	return api
}


func TestApiLogin(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Post("/auth/login").
		MatchHeader("X-Request-Id", ".+").
		JSON(map[string]string{"email": "ada@example.com", "password": "secret"}).
		Reply(200).
		JSON(map[string]any{
			"msg": "success",
			"data": map[string]any{
				"token": "t1",
				"customer": map[string]any{"cust_id": "c1", "name": "Ada"},
			},
		})

	result, err := api.Login(context.Background(), &Credentials{Email: "ada@example.com", Password: "secret"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "t1", result.Data.Token)
	assert.Equal(t, "c1", result.Data.Customer.CustomerId)
	assert.Equal(t, "Ada", result.Data.Customer.Name)
	assert.Equal(t, true, gock.IsDone())
}

func TestApiCartCallsCarryToken(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Get("/cart").
		MatchHeader("Authorization", "^Bearer t1$").
		Reply(200).
		JSON(map[string]any{
			"msg": "success",
			"data": map[string]any{
				"items": []any{
					map[string]any{"grocery_id": 3, "quantity": 2, "amount": 5.5},
					map[string]any{"grocery_id": "g-9", "quantity": 1},
				},
			},
		})
	gock.New(testApiUrl).
		Post("/cart/remove").
		MatchHeader("Authorization", "^Bearer t1$").
		Reply(200).
		JSON(map[string]any{"msg": "no items found"})
	gock.New(testApiUrl).
		Post("/cart/checkout").
		Reply(200).
		JSON(map[string]any{"msg": "success", "data": map[string]any{"order_id": "o-1"}})

	ctx := context.Background()

	cart, err := api.GetCart(ctx, "t1")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, cart.Success())
	assert.Equal(t, 2, len(cart.Data.Items))
	assert.Equal(t, GroceryId("3"), cart.Data.Items[0].GroceryId)
	assert.Equal(t, 2, cart.Data.Items[0].Quantity)
	assert.Equal(t, GroceryId("g-9"), cart.Data.Items[1].GroceryId)

	removed, err := api.RemoveItemFromCart(ctx, "t1", "3")
	assert.Equal(t, nil, err)
	assert.Equal(t, MsgNoItemsFound, removed.Msg)
	assert.Equal(t, true, removed.Data == nil)

	checkout, err := api.CheckoutCart(ctx, "t1")
	assert.Equal(t, nil, err)
	assert.Equal(t, "o-1", checkout.Data.OrderId())

	assert.Equal(t, true, gock.IsDone())
}

func TestApiServiceUrls(t *testing.T) {
	defer gock.Off()

	settings := DefaultApiSettings()
	settings.ApiUrl = testApiUrl
	settings.PaymentUrl = "http://payments.test/"
	api := NewGroceryApi(settings)
	gock.InterceptClient(api.HttpClient())
	defer gock.RestoreClient(api.HttpClient())

	gock.New("http://payments.test").
		Get("/payment/key").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"payment_key": "pk_1"}})
	gock.New("http://payments.test").
		Post("/payment").
		Reply(200).
		JSON(map[string]any{"status": "succeeded"})
	gock.New(testApiUrl).
		Post("/orders/o-1/delivery-location").
		Reply(200).
		JSON(map[string]any{"msg": "success"})

	ctx := context.Background()

	key, err := api.GetPublicKey(ctx, "t1")
	assert.Equal(t, nil, err)
	assert.Equal(t, "pk_1", key.Data.PaymentKey)

	payment, err := api.MakePayment(ctx, "t1", &PaymentArgs{OrderId: "o-1", Amount: 100})
	assert.Equal(t, nil, err)
	fields, ok := payment.Fields()
	assert.Equal(t, true, ok)
	assert.Equal(t, "succeeded", fields["status"])

	order, err := api.SetDeliveryLocation(ctx, "t1", "o-1", &DeliveryLocation{Address: "1 Market St"})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, order.Success())

	assert.Equal(t, true, gock.IsDone())
}

func TestApiErrorStatus(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Post("/payment").
		Reply(401).
		BodyString("token expired\n")
	gock.New(testApiUrl).
		Post("/groceries/rate").
		Reply(500)

	ctx := context.Background()

	_, err := api.MakePayment(ctx, "t1", &PaymentArgs{OrderId: "o-1"})
	var apiErr *ApiError
	assert.Equal(t, true, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.Equal(t, ErrorKindUnauthenticated, errorKind(err))

	err = api.RateGrocery(ctx, "t1", &RateArgs{GroceryId: "1", Rating: 5})
	assert.Equal(t, true, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "status 500", apiErr.Error())
	assert.Equal(t, ErrorKindRejected, errorKind(err))
}

func TestApiEmptyBodyAcknowledges(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Post("/auth/logout").
		MatchHeader("Authorization", "^Bearer t1$").
		Reply(200)

	err := api.Logout(context.Background(), "t1")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, gock.IsDone())
}

func TestApiTextBodyAcknowledges(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Post("/groceries/rate").
		Reply(200).
		BodyString("OK")
	gock.New(testApiUrl).
		Post("/auth/logout").
		Reply(200).
		SetHeader("Content-Type", "text/plain").
		BodyString("logged out\n")

	ctx := context.Background()
	err := api.RateGrocery(ctx, "t1", &RateArgs{GroceryId: "1", Rating: 4})
	assert.Equal(t, nil, err)
	err = api.Logout(ctx, "t1")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, gock.IsDone())
}

func TestApiPaymentResultAnyBody(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Post("/payment").
		Reply(200).
		BodyString("[1, 2]")
	gock.New(testApiUrl).
		Post("/payment").
		Reply(200).
		BodyString("accepted")
	gock.New(testApiUrl).
		Post("/payment").
		Reply(200)

	ctx := context.Background()
	args := &PaymentArgs{OrderId: "o-1", Amount: 100}

	payment, err := api.MakePayment(ctx, "t1", args)
	assert.Equal(t, nil, err)
	_, ok := payment.Fields()
	assert.Equal(t, false, ok)
	value, err := payment.Value()
	assert.Equal(t, nil, err)
	assert.Equal(t, []any{float64(1), float64(2)}, value)

	payment, err = api.MakePayment(ctx, "t1", args)
	assert.Equal(t, nil, err)
	value, err = payment.Value()
	assert.Equal(t, nil, err)
	assert.Equal(t, "accepted", value)
	paymentJson, err := json.Marshal(payment)
	assert.Equal(t, nil, err)
	assert.Equal(t, `"accepted"`, string(paymentJson))

	payment, err = api.MakePayment(ctx, "t1", args)
	assert.Equal(t, nil, err)
	value, err = payment.Value()
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, value)
	paymentJson, err = json.Marshal(payment)
	assert.Equal(t, nil, err)
	assert.Equal(t, "null", string(paymentJson))

	assert.Equal(t, true, gock.IsDone())
}

func TestApiTransportError(t *testing.T) {
	defer gock.Off()
	api := newTestApi()
	defer gock.RestoreClient(api.HttpClient())

	gock.New(testApiUrl).
		Get("/groceries").
		ReplyError(errors.New("connection refused"))

	_, err := api.GetGroceries(context.Background())
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrorKindTransport, errorKind(err))
}
