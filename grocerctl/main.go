package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/freshgrocer/grocer/grocer"
	"github.com/freshgrocer/grocer/grocer/viewsync"
)


const GrocerCtlVersion = "0.0.1"

const SessionFileName = "session.yml"


var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate | log.Ltime | log.Lshortfile)
}


func main() {
	usage := fmt.Sprintf(
		`Grocer control.

The default api url is %s
The session is kept in <state_dir>/%s between commands.

Usage:
    grocerctl login [options] --email=<email> [--password=<password>]
    grocerctl logout [options]
    grocerctl catalog [options] [--category=<category>]
    grocerctl cart [options]
    grocerctl add [options] <grocery_id> [--quantity=<quantity>]
    grocerctl remove [options] <grocery_id>
    grocerctl empty [options]
    grocerctl checkout [options]
    grocerctl rate [options] <grocery_id> --rating=<rating> [--comment=<comment>]
    grocerctl payment-key [options]
    grocerctl pay [options] <order_id> --amount=<amount> --payment_method=<payment_method_id>
        [--currency=<currency>]
    grocerctl deliver [options] <order_id> --address=<address>
        [--lat=<lat>] [--lng=<lng>] [--notes=<notes>]
    grocerctl schedule [options] <order_id> --at=<deliver_at>
    grocerctl serve [options] [--listen=<listen_addr>] [--refresh=<refresh>]

Options:
    -h --help                       Show this screen.
    --version                       Show version.
    --api_url=<api_url>             Overrides the config api url.
    --config=<config>               Yaml settings file with api, store, and bridge sections.
    --state_dir=<state_dir>         Session directory. Defaults to ~/.grocer
    --email=<email>
    --password=<password>           Prompted when not given.
    --category=<category>           Only list this category.
    --quantity=<quantity>           [default: 1]
    --rating=<rating>               1 to 5.
    --comment=<comment>
    --amount=<amount>               Amount in the smallest currency unit.
    --payment_method=<payment_method_id>
    --currency=<currency>
    --address=<address>
    --lat=<lat>
    --lng=<lng>
    --notes=<notes>
    --at=<deliver_at>               Delivery time, rfc3339.
    --listen=<listen_addr>          Bridge listen address.
    --refresh=<refresh>             Reload the catalog, customer, and cart at this interval, e.g. 1m.`,
		grocer.DefaultApiSettings().ApiUrl,
		SessionFileName,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], GrocerCtlVersion)
	if err != nil {
		panic(err)
	}

	if login_, _ := opts.Bool("login"); login_ {
		login(opts)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		logout(opts)
	} else if catalog_, _ := opts.Bool("catalog"); catalog_ {
		catalog(opts)
	} else if cart_, _ := opts.Bool("cart"); cart_ {
		cart(opts)
	} else if add_, _ := opts.Bool("add"); add_ {
		add(opts)
	} else if remove_, _ := opts.Bool("remove"); remove_ {
		remove(opts)
	} else if empty_, _ := opts.Bool("empty"); empty_ {
		empty(opts)
	} else if checkout_, _ := opts.Bool("checkout"); checkout_ {
		checkout(opts)
	} else if rate_, _ := opts.Bool("rate"); rate_ {
		rate(opts)
	} else if paymentKey_, _ := opts.Bool("payment-key"); paymentKey_ {
		paymentKey(opts)
	} else if pay_, _ := opts.Bool("pay"); pay_ {
		pay(opts)
	} else if deliver_, _ := opts.Bool("deliver"); deliver_ {
		deliver(opts)
	} else if schedule_, _ := opts.Bool("schedule"); schedule_ {
		schedule(opts)
	} else if serve_, _ := opts.Bool("serve"); serve_ {
		serve(opts)
	}
}


type CtlSettings struct {
	Api *grocer.ApiSettings `yaml:"api"`
	Store *grocer.StoreSettings `yaml:"store"`
	Bridge *viewsync.BridgeSettings `yaml:"bridge"`
}

func DefaultCtlSettings() *CtlSettings {
	settings := grocer.DefaultSettings()
	return &CtlSettings{
		Api: settings.Api,
		Store: settings.Store,
		Bridge: viewsync.DefaultBridgeSettings(),
	}
}

func loadSettings(opts docopt.Opts) *CtlSettings {
	settings := DefaultCtlSettings()
	if config, err := opts.String("--config"); err == nil && config != "" {
		if err := grocer.ReadSettingsFile(config, settings); err != nil {
			Err.Fatalf("%s", err)
		}
	}
	if apiUrl, err := opts.String("--api_url"); err == nil && apiUrl != "" {
		settings.Api.ApiUrl = apiUrl
	}
	return settings
}

func stateDir(opts docopt.Opts) string {
	if stateDir, err := opts.String("--state_dir"); err == nil && stateDir != "" {
		return stateDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		Err.Fatalf("%s", err)
	}
	return filepath.Join(home, ".grocer")
}


// alerts go to stderr so that stdout stays parseable
type errNotifier struct {
}

func (self *errNotifier) Alert(message string) {
	Err.Printf("%s\n", message)
}


type ctl struct {
	ctx context.Context
	settings *CtlSettings
	store *grocer.Store
}

func newCtl(ctx context.Context, opts docopt.Opts, notifier grocer.Notifier, metrics *grocer.StoreMetrics) *ctl {
	settings := loadSettings(opts)
	sessionStorage, err := grocer.NewFileSessionStorage(filepath.Join(stateDir(opts), SessionFileName))
	if err != nil {
		Err.Fatalf("%s", err)
	}
	api := grocer.NewGroceryApi(settings.Api)
	store := grocer.NewStore(
		grocer.NewServices(api),
		sessionStorage,
		notifier,
		settings.Store,
		metrics,
	)
	return &ctl{
		ctx: ctx,
		settings: settings,
		store: store,
	}
}

func newCommandCtl(opts docopt.Opts) *ctl {
	return newCtl(context.Background(), opts, &errNotifier{}, grocer.NewStoreMetrics(nil))
}

func (self *ctl) requireAuthenticated() {
	if !self.store.IsAuthenticated() {
		Err.Fatalf("Not logged in. Run grocerctl login.")
	}
}

func printJson(value any) {
	valueJson, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		Err.Fatalf("%s", err)
	}
	Out.Printf("%s\n", valueJson)
}

func requireInt(opts docopt.Opts, key string) int {
	valueStr, err := opts.String(key)
	if err != nil {
		Err.Fatalf("%s is required", key)
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		Err.Fatalf("%s must be a number", key)
	}
	return value
}

func optionalFloat(opts docopt.Opts, key string) float64 {
	valueStr, err := opts.String(key)
	if err != nil || valueStr == "" {
		return 0
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		Err.Fatalf("%s must be a number", key)
	}
	return value
}

func optionalString(opts docopt.Opts, key string) string {
	value, _ := opts.String(key)
	return value
}


func login(opts docopt.Opts) {
	c := newCommandCtl(opts)

	email, _ := opts.String("--email")
	password, err := opts.String("--password")
	if err != nil || password == "" {
		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			panic(err)
		}
		password = string(passwordBytes)
		fmt.Printf("\n")
	}

	if !c.store.Login(c.ctx, &grocer.Credentials{
		Email: email,
		Password: password,
	}) {
		Err.Fatalf("Login failed.")
	}
	Out.Printf("customer_id: %s\n", c.store.State().CustomerId())
}

func logout(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.store.Logout(c.ctx)
	Out.Printf("Logged out.\n")
}

func catalog(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.store.FetchCatalog(c.ctx)

	grouped := c.store.State().GroupedCatalog()
	if category := optionalString(opts, "--category"); category != "" {
		groceries, ok := grouped.Get(category)
		if !ok {
			Err.Fatalf("No category %s. Categories are %v", category, grouped.Categories())
		}
		printJson(groceries)
		return
	}
	printJson(grouped)
}

func cart(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()
	c.store.FetchCart(c.ctx)
	printCart(c)
}

func printCart(c *ctl) {
	state := c.store.State()
	printJson(map[string]any{
		"cart_size": state.CartSize(),
		"cart_item_ids": state.CartItemIds(),
		"cart_items": state.CartItems(),
	})
}

func add(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	groceryId, _ := opts.String("<grocery_id>")
	c.store.AddToCart(c.ctx, &grocer.AddToCartArgs{
		GroceryId: grocer.GroceryId(groceryId),
		Quantity: requireInt(opts, "--quantity"),
	})
	printCart(c)
}

func remove(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	groceryId, _ := opts.String("<grocery_id>")
	c.store.RemoveItemFromCart(c.ctx, grocer.GroceryId(groceryId))
	printCart(c)
}

func empty(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()
	c.store.EmptyCart(c.ctx)
	printCart(c)
}

func checkout(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	order, ok := c.store.CheckoutCart(c.ctx)
	if !ok {
		Err.Fatalf("Checkout did not complete.")
	}
	printJson(order)
}

func rate(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	groceryId, _ := opts.String("<grocery_id>")
	c.store.RateGrocery(c.ctx, &grocer.RateArgs{
		GroceryId: grocer.GroceryId(groceryId),
		Rating: requireInt(opts, "--rating"),
		Comment: optionalString(opts, "--comment"),
	})
}

func paymentKey(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()
	c.store.FetchPaymentPublicKey(c.ctx)
	Out.Printf("payment_key: %s\n", c.store.State().PaymentKey())
}

func pay(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	orderId, _ := opts.String("<order_id>")
	paymentMethodId, _ := opts.String("--payment_method")
	result, err := c.store.MakePayment(c.ctx, &grocer.PaymentArgs{
		OrderId: orderId,
		PaymentMethodId: paymentMethodId,
		Amount: int64(requireInt(opts, "--amount")),
		Currency: optionalString(opts, "--currency"),
	})
	if err != nil {
		if kind, ok := grocer.ErrorKindOf(err); ok && kind == grocer.ErrorKindUnauthenticated {
			c.store.InvalidateSession()
			Err.Fatalf("The session is no longer valid. Run grocerctl login.")
		}
		Err.Fatalf("%s", err)
	}
	if fields, ok := result.Fields(); ok {
		if status, ok := fields["status"].(string); ok {
			Err.Printf("Payment %s.\n", status)
		}
	}
	printJson(result)
}

func deliver(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	orderId, _ := opts.String("<order_id>")
	address, _ := opts.String("--address")
	if !c.store.SetDeliveryLocation(c.ctx, orderId, &grocer.DeliveryLocation{
		Address: address,
		Latitude: optionalFloat(opts, "--lat"),
		Longitude: optionalFloat(opts, "--lng"),
		Notes: optionalString(opts, "--notes"),
	}) {
		os.Exit(1)
	}
	Out.Printf("Delivery location set for %s.\n", orderId)
}

func schedule(opts docopt.Opts) {
	c := newCommandCtl(opts)
	c.requireAuthenticated()

	orderId, _ := opts.String("<order_id>")
	deliverAt, _ := opts.String("--at")
	if _, err := time.Parse(time.RFC3339, deliverAt); err != nil {
		Err.Fatalf("--at must be rfc3339, e.g. 2026-10-16T09:00:00Z")
	}
	if !c.store.ScheduleOrder(c.ctx, &grocer.ScheduleArgs{
		OrderId: orderId,
		DeliverAt: deliverAt,
	}) {
		os.Exit(1)
	}
	Out.Printf("Order %s scheduled for %s.\n", orderId, deliverAt)
}

// serves the store to a local view over http and websocket until interrupted
func serve(opts docopt.Opts) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	c := newCtl(ctx, opts, grocer.NewLogNotifier(), grocer.NewStoreMetrics(registry))
	if listenAddr := optionalString(opts, "--listen"); listenAddr != "" {
		c.settings.Bridge.ListenAddr = listenAddr
	}

	var refresh time.Duration
	if refreshStr := optionalString(opts, "--refresh"); refreshStr != "" {
		var err error
		refresh, err = time.ParseDuration(refreshStr)
		if err != nil {
			Err.Fatalf("--refresh must be a duration, e.g. 1m")
		}
	}

	c.store.Hydrate(ctx)

	bridge := viewsync.NewBridge(ctx, c.store, registry, c.settings.Bridge)
	addr, err := bridge.Start()
	if err != nil {
		Err.Fatalf("%s", err)
	}
	Out.Printf("Serving %s on http://%s\n", GrocerCtlVersion, addr)

	if 0 < refresh {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(refresh):
				}
				c.store.Hydrate(ctx)
			}
		}()
	}

	select {
	case <-ctx.Done():
	}

	bridge.Stop()
}
