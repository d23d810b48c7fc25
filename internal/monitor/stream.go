package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"github.com/specialistvlad/burstmc/internal/mcmc"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Emitter sends events to a live dashboard.
type Emitter interface {
	Emit(event string, data any)
	Close()
}

// Dialer connects an Emitter.
type Dialer func(ctx context.Context, cfg StreamConfig) (Emitter, error)

// StreamConfig configures a stream monitor.
type StreamConfig struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// sharedConn is the connection shared by a stream monitor and its clones.
type sharedConn struct {
	mu     sync.Mutex
	em     Emitter
	refs   int
	header bool
}

// Stream emits every sampled generation as a socket.io event.
type Stream struct {
	base
	cfg    StreamConfig
	dial   Dialer
	logger *slog.Logger
	conn   *sharedConn
}

var _ mcmc.Monitor = (*Stream)(nil)

// NewStream returns a stream monitor. A nil dial connects with socket.io.
func NewStream(logger *slog.Logger, cfg StreamConfig, every int, nodes []string, dial Dialer) *Stream {
	if dial == nil {
		dial = DialSocketIO
	}
	if cfg.Event == "" {
		cfg.Event = "sample"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	return &Stream{
		base:   newBase(every, nodes),
		cfg:    cfg,
		dial:   dial,
		logger: logger,
		conn:   &sharedConn{},
	}
}

func (s *Stream) OpenStream() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
		defer cancel()
		if s.logger != nil {
			ctx = ctxlog.WithLogger(ctx, s.logger)
		}
		em, err := s.dial(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.logger.Info("Sample stream opened.", "url", s.cfg.URL, "event", s.cfg.Event)
		c.em = em
		c.header = false
	}
	c.refs++
	return nil
}

func (s *Stream) CloseStream() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == 0 {
		return nil
	}
	c.refs--
	if c.refs == 0 {
		c.em.Close()
		c.em = nil
	}
	return nil
}

// PrintHeader emits the column names under "<event>_header" once per
// connection.
func (s *Stream) PrintHeader() error {
	cols, err := s.columns()
	if err != nil {
		return err
	}
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.em == nil {
		return fmt.Errorf("stream to %s is not open", s.cfg.URL)
	}
	if c.header {
		return nil
	}
	c.header = true
	c.em.Emit(s.cfg.Event+"_header", map[string]any{"columns": cols})
	return nil
}

func (s *Stream) Monitor(generation int) error {
	if !s.due(generation) {
		return nil
	}
	cols, err := s.columns()
	if err != nil {
		return err
	}
	lnPosterior, values, err := s.row()
	if err != nil {
		return err
	}
	sample := make(map[string]float64, len(values))
	for i, v := range values {
		sample[cols[i]] = v
	}

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.em == nil {
		return fmt.Errorf("stream to %s is not open", s.cfg.URL)
	}
	c.em.Emit(s.cfg.Event, map[string]any{
		"generation":   generation,
		"ln_posterior": lnPosterior,
		"values":       sample,
	})
	return nil
}

// Clone returns an unbound copy sharing the same connection.
func (s *Stream) Clone() mcmc.Monitor {
	return &Stream{base: s.unbound(), cfg: s.cfg, dial: s.dial, logger: s.logger, conn: s.conn}
}

// socketEmitter adapts a socket.io client socket.
type socketEmitter struct {
	io     *socket.Socket
	logger *slog.Logger
}

func (e *socketEmitter) Emit(event string, data any) {
	e.io.Emit(event, data)
}

func (e *socketEmitter) Close() {
	e.logger.Info("Disconnecting sample stream.", "sid", e.io.Id())
	e.io.Disconnect()
}

// DialSocketIO connects to a socket.io server over websocket and waits for
// the connect event. It logs through the logger carried by ctx.
func DialSocketIO(ctx context.Context, cfg StreamConfig) (Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("monitor", "stream", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Sample stream connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &socketEmitter{io: io, logger: logger}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection to %s: %w", cfg.URL, ctx.Err())
	}
}
