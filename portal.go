package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/portal/adapters/authserver"
	"github.com/layer-3/portal/adapters/events"
	"github.com/layer-3/portal/adapters/reporter"
	"github.com/layer-3/portal/adapters/store"
	"github.com/layer-3/portal/adapters/tokenizer"
	"github.com/layer-3/portal/adapters/wallet"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/internal/config"
	"github.com/layer-3/portal/ports"
	"github.com/layer-3/portal/service"
	transport "github.com/layer-3/portal/transport/http"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Portal wires the login handshake to its adapters and HTTP surface
type Portal struct {
	cfg       config.Config
	logger    *slog.Logger
	bridge    *wallet.Bridge
	sessions  *transport.Sessions
	router    *gin.Engine
	redis     *redis.Client
	publisher message.Publisher
	stopWatch context.CancelFunc
}

// New builds the portal from configuration
func New(cfg config.Config, logger *slog.Logger) (*Portal, error) {
	p := &Portal{cfg: cfg, logger: logger}

	var ledger ports.ChallengeLedger
	wmLogger := watermill.NewSlogLogger(logger)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		p.redis = redis.NewClient(opts)
		ledger = store.NewRedisStore(p.redis)

		p.publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: p.redis,
			},
			wmLogger,
		)
		if err != nil {
			_ = p.redis.Close()
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
	} else {
		logger.Warn("REDIS_URL not set, keeping challenge ledger and events in memory")
		ledger = store.NewMemoryStore()
		p.publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}
	eventPub := events.NewWatermillPublisher(p.publisher, cfg.EventsTopic)

	var errReporter ports.ErrorReporter = reporter.Nop{}
	if cfg.ErrorLogURL != "" {
		tokens := tokenizer.NewAPITokenIssuer(cfg.APITokenSecret, tokenizer.DefaultAPITokenIssuer, tokenizer.DefaultAPITokenTTL)
		errReporter = reporter.NewHTTPReporter(cfg.ErrorLogURL, tokens, logger)
	}

	client := authserver.NewClient(cfg.AuthServerURL,
		authserver.WithTimeout(cfg.HTTPTimeout),
		authserver.WithCredentials(authserver.NewCredentials(cfg.AuthServerToken)),
		authserver.WithLogger(logger),
	)

	bridgeOpts := []wallet.BridgeOption{
		wallet.WithPollInterval(cfg.WalletPollInterval),
		wallet.WithSignatureCheck(),
		wallet.WithBridgeLogger(logger),
	}
	if cfg.WalletKeyFile != "" {
		bridgeOpts = append(bridgeOpts, wallet.WithProbe(wallet.KeyFileProbe(cfg.WalletKeyFile, nil, logger)))
	}
	p.bridge = wallet.NewBridge(client, bridgeOpts...)

	if cfg.WalletKeyFile != "" {
		var watchCtx context.Context
		watchCtx, p.stopWatch = context.WithCancel(context.Background())
		go wallet.NewWatcher(p.bridge, cfg.WalletPollInterval).Run(watchCtx)
	}

	factory := func(id string, params core.AuthRequestParams, navigator ports.Navigator) *service.Coordinator {
		return service.NewCoordinator(params, p.bridge, client, client,
			service.NewRedirectFinalizer(navigator),
			service.WithHandshakeID(id),
			service.WithDetectTimeout(cfg.WalletDetectTimeout),
			service.WithChallengeLedger(ledger),
			service.WithEventPublisher(eventPub),
			service.WithErrorReporter(errReporter),
			service.WithLogger(logger),
		)
	}
	p.sessions = transport.NewSessions(factory, cfg.SessionTTL, logger)

	gin.SetMode(gin.ReleaseMode)
	p.router = transport.SetupRouter(p.sessions, cfg.CookieSecure, logger)

	return p, nil
}

// Router returns the gin router
func (p *Portal) Router() *gin.Engine {
	return p.router
}

// Bridge returns the wallet bridge so a provider can be injected at runtime
func (p *Portal) Bridge() *wallet.Bridge {
	return p.bridge
}

// Run serves HTTP until ctx is done
func (p *Portal) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              p.cfg.HTTPAddr,
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("portal listening", "addr", p.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	p.sessions.Close()
	return srv.Shutdown(shutdownCtx)
}

// Close stops the key file watcher and releases the event publisher and
// Redis connection
func (p *Portal) Close() error {
	if p.stopWatch != nil {
		p.stopWatch()
	}
	p.sessions.Close()

	var errs []error
	if err := p.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
