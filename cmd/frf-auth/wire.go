package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/carboncopyrefi/frf-front/adapters/events"
	"github.com/carboncopyrefi/frf-front/adapters/sessionclient"
	"github.com/carboncopyrefi/frf-front/adapters/store"
	"github.com/carboncopyrefi/frf-front/adapters/wallet"
	"github.com/carboncopyrefi/frf-front/authstore"
	"github.com/carboncopyrefi/frf-front/config"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/carboncopyrefi/frf-front/service"
	"github.com/carboncopyrefi/frf-front/siwe"
	"github.com/redis/go-redis/v9"
)

// app holds everything a client command needs
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *authstore.Store
	tokens ports.TokenStore
	wallet *wallet.KeyWallet
	r      *service.Reconciler

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown", "error", err)
		}
	}
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// newPublisher builds the watermill publisher selected by FRF_EVENTS
func newPublisher(cfg *config.Config, client redis.UniversalClient) (message.Publisher, error) {
	logger := watermill.NewStdLogger(cfg.LogLevel == "debug", false)

	switch cfg.Events {
	case "redis":
		return redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			logger,
		)
	default:
		return gochannel.NewGoChannel(gochannel.Config{}, logger), nil
	}
}

func newApp(cfg *config.Config) (*app, error) {
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a := &app{cfg: cfg, log: log, store: authstore.New()}

	var redisClient *redis.Client
	if cfg.TokenStore == "redis" || cfg.Events == "redis" {
		c, err := newRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		redisClient = c
		a.closers = append(a.closers, c.Close)
	}

	switch cfg.TokenStore {
	case "memory":
		a.tokens = store.NewMemoryStore()
	case "redis":
		a.tokens = store.NewRedisStore(redisClient)
	default:
		path := cfg.TokenFile
		if path == "" {
			p, err := store.DefaultTokenPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		a.tokens = store.NewFileStore(path)
	}

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events != "none" {
		pub, err := newPublisher(cfg, redisClient)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		eventPub = events.NewWatermillPublisher(pub)
		unsubscribe := service.PublishChanges(a.store, eventPub, log)
		a.closers = append(a.closers, func() error {
			unsubscribe()
			return nil
		})
	}

	if cfg.WalletKey == "" {
		a.Close()
		return nil, errors.New("FRF_WALLET_KEY is required")
	}
	w, err := wallet.FromHex(cfg.WalletKey)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.wallet = w

	a.r = service.NewReconciler(
		a.store,
		a.tokens,
		sessionclient.New(cfg.APIURL),
		w,
		siwe.NewBuilder(cfg.Origin, cfg.Statement),
		cfg.Chains,
		service.WithLogger(log),
		service.WithEvents(eventPub),
	)
	return a, nil
}

// loadSigningKey reads a PEM encoded P-256 key, or generates one
func loadSigningKey(path string, log *slog.Logger) (*ecdsa.PrivateKey, error) {
	if path == "" {
		log.Warn("no signing key configured, generating an ephemeral one")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("signing key is not PEM encoded")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an ECDSA key")
	}
	return key, nil
}
