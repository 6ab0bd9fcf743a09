package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/drstein77/productcatalog/internal/config"
	"github.com/drstein77/productcatalog/internal/controllers"
	"github.com/drstein77/productcatalog/internal/dbkeeper"
	"github.com/drstein77/productcatalog/internal/filekeeper"
	"github.com/drstein77/productcatalog/internal/logger"
	"github.com/drstein77/productcatalog/internal/middleware"
	"github.com/drstein77/productcatalog/internal/remote"
	"github.com/drstein77/productcatalog/internal/storage"
	"github.com/go-chi/chi"
	chiMid "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// Backend bundles the local store and the remote catalog used by every surface.
type Backend struct {
	Keeper storage.Keeper
	Store  *storage.Store
	Remote *remote.Client
}

// Open connects the keeper selected by option and builds the store on top of it.
// opts configure the remote catalog client.
func Open(ctx context.Context, option *config.Options, log *logger.Logger, opts ...remote.Option) (*Backend, error) {
	var keeper storage.Keeper
	switch kind := option.StoreKind(); kind {
	case config.StorePostgres:
		kp, err := dbkeeper.NewDBKeeper(ctx, option.DataBaseDSN, option.MigrationsDir(), log)
		if err != nil {
			return nil, err
		}
		keeper = kp
	case config.StoreFile:
		kp, err := filekeeper.New(option.StoreDir(), log)
		if err != nil {
			return nil, err
		}
		keeper = kp
	case config.StoreMemory:
		keeper = storage.NewMemoryKeeper()
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
	log.Info("Local store opened", zap.String("kind", option.StoreKind()))

	return &Backend{
		Keeper: keeper,
		Store:  storage.NewStore(keeper, log),
		Remote: remote.NewClient(opts...),
	}, nil
}

// Close releases the keeper.
func (b *Backend) Close() {
	b.Keeper.Close()
}

type Server struct {
	srv      *http.Server
	ctx      context.Context
	option   *config.Options
	backend  *Backend
	Log      *logger.Logger
	mx       sync.Mutex
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new Server instance with the provided context
func NewServer(ctx context.Context, option *config.Options) (*Server, error) {
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, err
	}

	backend, err := Open(ctx, option, nLogger)
	if err != nil {
		nLogger.Error("Failed to open local store", zap.Error(err))
		return nil, err
	}

	return &Server{
		ctx:     ctx,
		option:  option,
		backend: backend,
		Log:     nLogger,
		done:    make(chan struct{}),
	}, nil
}

// Handler builds the router with request middleware and every route mounted.
func (server *Server) Handler() http.Handler {
	basecontr := controllers.NewBaseController(server.backend.Store, server.backend.Remote, server.Log)

	r := chi.NewRouter()
	r.Use(chiMid.RequestID)
	r.Use(chiMid.RealIP)
	r.Use(chiMid.Recoverer)
	r.Use(middleware.RequestLogger(server.Log))
	r.Mount("/", basecontr.Route())
	return r
}

// Serve starts the server and blocks until it is shut down. After Shutdown
// begins, Serve returns only once in-flight requests are drained and the
// local store is closed.
func (server *Server) Serve() error {
	ln, err := net.Listen("tcp", server.option.RunAddr())
	if err != nil {
		server.Log.Error("Failed to listen", zap.Error(err))
		return err
	}
	return server.serve(ln, server.Handler())
}

func (server *Server) serve(ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler: h,
		BaseContext: func(net.Listener) context.Context {
			return server.ctx
		},
	}
	server.mx.Lock()
	if server.stopped {
		server.mx.Unlock()
		ln.Close()
		return nil
	}
	server.srv = srv
	server.mx.Unlock()

	server.Log.Info("Server started", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		server.Log.Error("Server stopped", zap.Error(err))
		return err
	}
	<-server.done
	return nil
}

// Shutdown gracefully shuts down the server and releases the local store.
// It runs once; later calls return immediately.
func (server *Server) Shutdown(timeout time.Duration) {
	server.stopOnce.Do(func() {
		defer close(server.done)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		server.mx.Lock()
		server.stopped = true
		srv := server.srv
		server.mx.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				server.Log.Error("Server shutdown error", zap.Error(err))
			}
		}
		server.backend.Close()
		server.Log.Info("Server stopped gracefully")
		server.Log.Sync()
	})
}
