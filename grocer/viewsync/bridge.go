package viewsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshgrocer/grocer/grocer"
)


func DefaultBridgeSettings() *BridgeSettings {
	return &BridgeSettings{
		ListenAddr: "127.0.0.1:8470",
		CoalesceTimeout: 50 * time.Millisecond,
		PingTimeout: 15 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadTimeout: 60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

type BridgeSettings struct {
	ListenAddr string `yaml:"listen_addr"`
	// changes within this window are sent as one snapshot
	CoalesceTimeout time.Duration `yaml:"coalesce_timeout"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}


// serves the store to a view layer
// `GET /state` returns the current snapshot
// `GET /state/watch` pushes a snapshot on connect and after every state change or alert
// `GET /metrics` exposes the store metrics
type Bridge struct {
	ctx context.Context
	cancel context.CancelFunc

	store *grocer.Store
	gatherer prometheus.Gatherer
	settings *BridgeSettings

	router *gin.Engine
	upgrader *websocket.Upgrader

	serverLock sync.Mutex
	server *http.Server
}

func NewBridge(ctx context.Context, store *grocer.Store, gatherer prometheus.Gatherer, settings *BridgeSettings) *Bridge {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	bridge := &Bridge{
		ctx: cancelCtx,
		cancel: cancel,
		store: store,
		gatherer: gatherer,
		settings: settings,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: settings.WriteTimeout,
		},
	}

	router := gin.Default()
	router.GET("/state", func(c *gin.Context) { bridge.getState(c) })
	router.GET("/state/watch", func(c *gin.Context) { bridge.watchState(c) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	bridge.router = router

	return bridge
}

func (self *Bridge) Handler() http.Handler {
	return self.router
}

// listens on the configured address and serves in the background
// returns the bound address, which differs from the setting when the port is 0
func (self *Bridge) Start() (string, error) {
	self.serverLock.Lock()
	defer self.serverLock.Unlock()

	if self.server != nil {
		return "", errors.New("bridge already started")
	}

	listener, err := net.Listen("tcp", self.settings.ListenAddr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", self.settings.ListenAddr, err)
	}

	server := &http.Server{
		Handler: self.router,
	}
	self.server = server
	addr := listener.Addr().String()
	glog.Infof("[viewsync]started on %s\n", addr)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("[viewsync]serve error = %s\n", err)
		}
	}()

	return addr, nil
}

// closes open watches and shuts the server down gracefully
func (self *Bridge) Stop() {
	self.cancel()

	self.serverLock.Lock()
	defer self.serverLock.Unlock()

	if self.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.settings.ShutdownTimeout)
	defer cancel()
	if err := self.server.Shutdown(ctx); err != nil {
		glog.Errorf("[viewsync]forced shutdown = %s\n", err)
	}
	glog.Infof("[viewsync]stopped\n")
	self.server = nil
}


func (self *Bridge) getState(c *gin.Context) {
	c.JSON(http.StatusOK, self.store.Snapshot())
}

func (self *Bridge) watchState(c *gin.Context) {
	ws, err := self.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		glog.Infof("[viewsync]upgrade error = %s\n", err)
		return
	}
	defer ws.Close()

	watchCtx, watchCancel := context.WithCancel(self.ctx)
	defer watchCancel()

	// one pending update is enough, a snapshot always carries the latest state
	update := make(chan struct{}, 1)
	notify := func() {
		select {
		case update <- struct{}{}:
		default:
		}
	}
	removeStateChange := self.store.AddStateChangeCallback(func(change grocer.StateChange) {
		notify()
	})
	defer removeStateChange()
	removeAlert := self.store.AddAlertCallback(func(alert *grocer.Alert) {
		notify()
	})
	defer removeAlert()

	remoteAddr := c.Request.RemoteAddr
	glog.V(1).Infof("[viewsync]watch %s\n", remoteAddr)

	go func() {
		defer watchCancel()

		ws.SetPongHandler(func(string) error {
			ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
			return nil
		})
		for {
			ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
			// the view never sends data. reading only processes control frames
			if _, _, err := ws.ReadMessage(); err != nil {
				glog.V(1).Infof("[viewsync]watch %s<- error = %s\n", remoteAddr, err)
				return
			}
		}
	}()

	writeSnapshot := func() error {
		snapshot := self.store.Snapshot()
		ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
		return ws.WriteJSON(snapshot)
	}

	if err := writeSnapshot(); err != nil {
		glog.Infof("[viewsync]watch %s-> error = %s\n", remoteAddr, err)
		return
	}
	for {
		select {
		case <-watchCtx.Done():
			ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(self.settings.WriteTimeout),
			)
			return
		case <-update:
			select {
			case <-watchCtx.Done():
				return
			case <-time.After(self.settings.CoalesceTimeout):
			}
			// changes during the wait are part of this snapshot
			select {
			case <-update:
			default:
			}
			if err := writeSnapshot(); err != nil {
				// note that for websocket a deadline timeout cannot be recovered
				glog.Infof("[viewsync]watch %s-> error = %s\n", remoteAddr, err)
				return
			}
		case <-time.After(self.settings.PingTimeout):
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(self.settings.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
