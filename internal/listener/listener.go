package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/cache"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/wire"
)

const (
	// DefaultPort is the port the reference client listens on
	DefaultPort = 4005

	// DefaultResponsePath is where responders POST responses
	DefaultResponsePath = "/response"

	// maxBodySize bounds an accepted response body
	maxBodySize = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Config holds the listener configuration
type Config struct {
	Host         string
	Port         int    // 0 picks a free port
	ResponsePath string // defaults to /response
	CertPath     string // HTTPS when both CertPath and KeyPath are set
	KeyPath      string
}

// Listener receives responses and keeps them in a cache.
type Listener struct {
	config    Config
	cache     *cache.Cache[wire.Service]
	echo      *echo.Echo
	hub       *hub
	tlsConfig *tls.Config

	mu sync.Mutex
	ln net.Listener
}

// New creates a listener storing into c, or into a fresh cache when c is nil.
func New(config Config, c *cache.Cache[wire.Service]) (*Listener, error) {
	if config.ResponsePath == "" {
		config.ResponsePath = DefaultResponsePath
	}
	if !strings.HasPrefix(config.ResponsePath, "/") {
		config.ResponsePath = "/" + config.ResponsePath
	}
	if c == nil {
		c = cache.New[wire.Service]()
	}

	l := &Listener{
		config: config,
		cache:  c,
		hub:    newHub(),
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		l.tlsConfig = tlsConfig
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(requestLogger)
	e.POST(config.ResponsePath, l.postResponse)
	e.GET("/responses", l.getResponses)
	e.DELETE("/responses", l.deleteResponses)
	e.GET("/ws", l.streamResponses)
	e.GET("/healthz", l.healthz)
	l.echo = e

	return l, nil
}

// Handler exposes the routes, mostly for tests.
func (l *Listener) Handler() http.Handler {
	return l.echo
}

// Cache returns the response cache.
func (l *Listener) Cache() *cache.Cache[wire.Service] {
	return l.cache
}

// Subscribe returns a channel of accepted responses and a function that
// cancels the subscription. Responses are dropped for a subscriber that
// falls behind.
func (l *Listener) Subscribe() (<-chan *wire.Response, func()) {
	ch := l.hub.subscribe()
	return ch, func() { l.hub.unsubscribe(ch) }
}

// Accept stores the services of resp and notifies subscribers.
func (l *Listener) Accept(resp *wire.Response) {
	services := resp.Services()
	items := make([]cache.Item[wire.Service], 0, len(services))
	for _, s := range services {
		items = append(items, cache.Item[wire.Service]{Key: s.ID, Value: s, TTLMinutes: s.TTLMinutes})
	}
	l.cache.PutAll(items)
	l.hub.broadcast(resp)
}

// Bind opens the listening socket. Start calls it when needed.
func (l *Listener) Bind() (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr(), nil
	}

	addr := net.JoinHostPort(l.config.Host, fmt.Sprint(l.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if l.tlsConfig != nil {
		ln = tls.NewListener(ln, l.tlsConfig)
	}
	l.ln = ln
	return ln.Addr(), nil
}

// CallbackURL is the respond-to URL for host, the address responders
// should use to reach this listener.
func (l *Listener) CallbackURL(host string) (string, error) {
	addr, err := l.Bind()
	if err != nil {
		return "", err
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", err
	}
	scheme := "http"
	if l.tlsConfig != nil {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, port) + l.config.ResponsePath, nil
}

// Start serves until ctx is done, then shuts down gracefully.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := l.Bind()
	if err != nil {
		return err
	}
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	srv := &http.Server{
		Handler:           l.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Response listener started",
		zap.String("addr", addr.String()),
		zap.String("path", l.config.ResponsePath),
		zap.Bool("tls", l.tlsConfig != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("response listener failed: %w", err)
	case <-ctx.Done():
	}

	logging.Info("Shutting down response listener...")
	l.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during listener shutdown: %w", err)
	}
	return nil
}
