package grocer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
)


func DefaultApiSettings() *ApiSettings {
	return &ApiSettings{
		ApiUrl: "https://api.freshgrocer.com",
		HttpTimeout: 60 * time.Second,
		HttpConnectTimeout: 5 * time.Second,
		HttpTlsTimeout: 5 * time.Second,
	}
}

type ApiSettings struct {
	// base url for every service without its own url
	ApiUrl string `yaml:"api_url"`
	AuthUrl string `yaml:"auth_url"`
	CatalogUrl string `yaml:"catalog_url"`
	CartUrl string `yaml:"cart_url"`
	PaymentUrl string `yaml:"payment_url"`
	OrderUrl string `yaml:"order_url"`

	HttpTimeout time.Duration `yaml:"http_timeout"`
	HttpConnectTimeout time.Duration `yaml:"http_connect_timeout"`
	HttpTlsTimeout time.Duration `yaml:"http_tls_timeout"`
}

func (self *ApiSettings) serviceUrl(serviceUrl string) string {
	if serviceUrl != "" {
		return strings.TrimSuffix(serviceUrl, "/")
	}
	return strings.TrimSuffix(self.ApiUrl, "/")
}


func newHttpClient(settings *ApiSettings) *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: settings.HttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSHandshakeTimeout: settings.HttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout: settings.HttpTimeout,
	}
}


// http client for the auth, catalog, cart, payment, and order services
// implements every service interface the store consumes
type GroceryApi struct {
	settings *ApiSettings
	client *http.Client
}

func NewGroceryApiWithDefaults(apiUrl string) *GroceryApi {
	settings := DefaultApiSettings()
	settings.ApiUrl = apiUrl
	return NewGroceryApi(settings)
}

func NewGroceryApi(settings *ApiSettings) *GroceryApi {
	return &GroceryApi{
		settings: settings,
		client: newHttpClient(settings),
	}
}

func (self *GroceryApi) HttpClient() *http.Client {
	return self.client
}


func (self *GroceryApi) Login(ctx context.Context, credentials *Credentials) (*LoginResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/auth/login", self.settings.serviceUrl(self.settings.AuthUrl)),
		credentials,
		"",
		&LoginResult{},
	)
}

func (self *GroceryApi) Logout(ctx context.Context, token string) error {
	// acknowledged by any 200, whatever the body
	_, err := postBody(
		ctx,
		self.client,
		fmt.Sprintf("%s/auth/logout", self.settings.serviceUrl(self.settings.AuthUrl)),
		nil,
		token,
	)
	return err
}

func (self *GroceryApi) GetCustomer(ctx context.Context, token string) (*CustomerResult, error) {
	return get(
		ctx,
		self.client,
		fmt.Sprintf("%s/auth/customer", self.settings.serviceUrl(self.settings.AuthUrl)),
		token,
		&CustomerResult{},
	)
}


func (self *GroceryApi) GetGroceries(ctx context.Context) (*GroceriesResult, error) {
	return get(
		ctx,
		self.client,
		fmt.Sprintf("%s/groceries", self.settings.serviceUrl(self.settings.CatalogUrl)),
		"",
		&GroceriesResult{},
	)
}

func (self *GroceryApi) RateGrocery(ctx context.Context, token string, rate *RateArgs) error {
	_, err := postBody(
		ctx,
		self.client,
		fmt.Sprintf("%s/groceries/rate", self.settings.serviceUrl(self.settings.CatalogUrl)),
		rate,
		token,
	)
	return err
}


func (self *GroceryApi) GetCart(ctx context.Context, token string) (*CartResult, error) {
	return get(
		ctx,
		self.client,
		fmt.Sprintf("%s/cart", self.settings.serviceUrl(self.settings.CartUrl)),
		token,
		&CartResult{},
	)
}

func (self *GroceryApi) AddToCart(ctx context.Context, token string, add *AddToCartArgs) (*CartResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/cart/add", self.settings.serviceUrl(self.settings.CartUrl)),
		add,
		token,
		&CartResult{},
	)
}

func (self *GroceryApi) EmptyCart(ctx context.Context, token string) (*CartResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/cart/empty", self.settings.serviceUrl(self.settings.CartUrl)),
		nil,
		token,
		&CartResult{},
	)
}

func (self *GroceryApi) RemoveItemFromCart(ctx context.Context, token string, groceryId GroceryId) (*CartResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/cart/remove", self.settings.serviceUrl(self.settings.CartUrl)),
		&RemoveFromCartArgs{
			GroceryId: groceryId,
		},
		token,
		&CartResult{},
	)
}

func (self *GroceryApi) CheckoutCart(ctx context.Context, token string) (*CheckoutResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/cart/checkout", self.settings.serviceUrl(self.settings.CartUrl)),
		nil,
		token,
		&CheckoutResult{},
	)
}


func (self *GroceryApi) GetPublicKey(ctx context.Context, token string) (*PaymentKeyResult, error) {
	return get(
		ctx,
		self.client,
		fmt.Sprintf("%s/payment/key", self.settings.serviceUrl(self.settings.PaymentUrl)),
		token,
		&PaymentKeyResult{},
	)
}

// the payment result is passed through as the raw json the service returned
// a text body becomes a json string
func (self *GroceryApi) MakePayment(ctx context.Context, token string, payment *PaymentArgs) (PaymentResult, error) {
	body, err := postBody(
		ctx,
		self.client,
		fmt.Sprintf("%s/payment", self.settings.serviceUrl(self.settings.PaymentUrl)),
		payment,
		token,
	)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if 0 < len(body) && !json.Valid(body) {
		// plain text is kept as a json string
		body, err = json.Marshal(string(body))
		if err != nil {
			return nil, err
		}
	}
	return PaymentResult(body), nil
}


func (self *GroceryApi) SetDeliveryLocation(ctx context.Context, token string, orderId string, location *DeliveryLocation) (*OrderResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf(
			"%s/orders/%s/delivery-location",
			self.settings.serviceUrl(self.settings.OrderUrl),
			url.PathEscape(orderId),
		),
		location,
		token,
		&OrderResult{},
	)
}

func (self *GroceryApi) ScheduleOrder(ctx context.Context, token string, schedule *ScheduleArgs) (*OrderResult, error) {
	return post(
		ctx,
		self.client,
		fmt.Sprintf("%s/orders/schedule", self.settings.serviceUrl(self.settings.OrderUrl)),
		schedule,
		token,
		&OrderResult{},
	)
}


func post[R any](ctx context.Context, client *http.Client, url string, args any, token string, result R) (R, error) {
	body, err := postBody(ctx, client, url, args, token)
	if err != nil {
		var empty R
		return empty, err
	}
	return decode(body, result)
}

func postBody(ctx context.Context, client *http.Client, url string, args any, token string) ([]byte, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")

	return do(client, req, token)
}


func get[R any](ctx context.Context, client *http.Client, url string, token string, result R) (R, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		var empty R
		return empty, err
	}

	body, err := do(client, req, token)
	if err != nil {
		var empty R
		return empty, err
	}
	return decode(body, result)
}


// returns the body of a 200 response
// any other status is an `*ApiError` carrying the body as its message
func do(client *http.Client, req *http.Request, token string) ([]byte, error) {
	requestId := NewId()
	req.Header.Add("X-Request-Id", requestId.String())
	if token != "" {
		auth := fmt.Sprintf("Bearer %s", token)
		req.Header.Add("Authorization", auth)
	}

	glog.V(2).Infof("[api][%s]%s %s\n", requestId, req.Method, req.URL.Path)

	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		glog.V(1).Infof("[api][%s]%s %s status = %d\n", requestId, req.Method, req.URL.Path, r.StatusCode)
		return nil, &ApiError{
			StatusCode: r.StatusCode,
			Message: errorMessage,
		}
	}

	if err != nil {
		return nil, err
	}
	return responseBodyBytes, nil
}

func decode[R any](body []byte, result R) (R, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		// acknowledged without a body
		return result, nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		var empty R
		return empty, err
	}
	return result, nil
}
