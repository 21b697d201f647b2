// Package gateway serves MTProto connections: it detects the transport,
// decrypts and validates messages, answers service messages itself and
// forwards RPC queries to a dispatcher.
package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/layer"
	"github.com/ZentaChain/zentalk-gateway/pkg/mtproto"
	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrServerClosed = errors.New("gateway: server closed")

// KeyExchanger runs the unencrypted auth key handshake. It returns the
// body of the plaintext reply, or nil for none.
type KeyExchanger interface {
	HandlePlain(ctx context.Context, connID string, msgID int64, body []byte) ([]byte, error)
}

// Authorizations resolves the user signed in on a permanent key. Lookup
// fails with storage.ErrNotFound when nobody is.
type Authorizations interface {
	Lookup(ctx context.Context, permAuthKeyID int64) (session.Authorization, error)
}

// Invoker executes RPC queries. It returns an error only when ctx ended
// before the result arrived.
type Invoker interface {
	Invoke(ctx context.Context, caller rpc.Caller, query tl.Object) (rpc.Result, error)
}

// Config tunes connection handling.
type Config struct {
	Limits transport.Limits
	// IdleTimeout closes connections that send nothing for this long.
	IdleTimeout time.Duration
	// GzipThreshold wraps encoded results larger than this in gzip_packed.
	// Zero disables compression.
	GzipThreshold int
	// MaxContainerWorkers bounds concurrent handling inside one container.
	MaxContainerWorkers int
	// UpdateQueue is the per-connection buffer of pushed updates.
	UpdateQueue int
	// MinLayer is the oldest layer invokeWithLayer may select.
	MinLayer int32
}

func DefaultConfig() Config {
	return Config{
		Limits:              transport.DefaultLimits(),
		IdleTimeout:         5 * time.Minute,
		GzipThreshold:       1024,
		MaxContainerWorkers: 16,
		UpdateQueue:         256,
		MinLayer:            layer.MinLayer,
	}
}

// Deps are the collaborators of a Server. Exchanger and Membership are
// optional.
type Deps struct {
	Keys           mtproto.KeyStore
	Authorizations Authorizations
	Sessions       *session.Manager
	Broker         pubsub.Broker
	Membership     *pubsub.Membership
	Invoker        Invoker
	Layers         *layer.Registry
	Salts          *crypto.Salts
	Exchanger      KeyExchanger
}

// Stats is a snapshot of server counters.
type Stats struct {
	Connections int64 `json:"connections"`
	Accepted    int64 `json:"accepted"`
	FramesIn    int64 `json:"frames_in"`
	FramesOut   int64 `json:"frames_out"`
	Sessions    int   `json:"sessions"`
}

// Server accepts MTProto connections.
type Server struct {
	cfg       Config
	deps      Deps
	validator *mtproto.Validator
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	closed    bool
	wg        sync.WaitGroup

	accepted  atomic.Int64
	framesIn  atomic.Int64
	framesOut atomic.Int64
}

func NewServer(cfg Config, deps Deps, log *zap.Logger) *Server {
	def := DefaultConfig()
	if cfg.Limits.MaxFrameSize == 0 {
		cfg.Limits = def.Limits
	}
	if cfg.MaxContainerWorkers <= 0 {
		cfg.MaxContainerWorkers = def.MaxContainerWorkers
	}
	if cfg.UpdateQueue <= 0 {
		cfg.UpdateQueue = def.UpdateQueue
	}
	if cfg.MinLayer == 0 {
		cfg.MinLayer = def.MinLayer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		deps:      deps,
		validator: mtproto.NewValidator(deps.Salts),
		log:       log.Named("gateway"),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*conn]struct{}),
	}
}

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			delete(s.listeners, ln)
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(nc, nc.RemoteAddr().String())
		}()
	}
}

// ServeConn runs the protocol on one established stream and returns when
// the connection ends. rwc is closed on return.
func (s *Server) ServeConn(rwc io.ReadWriteCloser, remote string) {
	s.accepted.Add(1)
	c := newConn(s, rwc, uuid.NewString(), remote)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		rwc.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	c.serve()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := int64(len(s.conns))
	s.mu.Unlock()
	return Stats{
		Connections: n,
		Accepted:    s.accepted.Load(),
		FramesIn:    s.framesIn.Load(),
		FramesOut:   s.framesOut.Load(),
		Sessions:    s.deps.Sessions.Len(),
	}
}

// Close stops the listeners, closes every connection and waits for them to
// be torn down.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ln := range s.listeners {
		ln.Close()
	}
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
	return nil
}
