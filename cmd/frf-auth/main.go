// Command frf-auth signs in to the Funding Readiness Framework with a local
// wallet key, and can run the reference session service.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carboncopyrefi/frf-front/adapters/events"
	"github.com/carboncopyrefi/frf-front/adapters/store"
	"github.com/carboncopyrefi/frf-front/adapters/tokenizer"
	"github.com/carboncopyrefi/frf-front/config"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/carboncopyrefi/frf-front/service"
	transport "github.com/carboncopyrefi/frf-front/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "frf-auth",
		Short:         "Sign-In With Ethereum client for the Funding Readiness Framework",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			c, err := config.Load(files...)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env)")

	withApp := func(run func(ctx context.Context, a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a, cmd)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Reconcile the stored session with the wallet and print the auth state",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
				return printJSON(cmd, a.r.WalletChanged(ctx, a.wallet.Connect()))
			}),
		},
		&cobra.Command{
			Use:   "signin",
			Short: "Sign a fresh SIWE message and store the issued token",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
				state := a.r.WalletChanged(ctx, a.wallet.Connect())
				if state.Authenticated {
					return printJSON(cmd, state)
				}
				state, err := a.r.SignIn(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			}),
		},
		&cobra.Command{
			Use:   "signout",
			Short: "End the remote session and forget the local token",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
				if err := a.r.SignOut(ctx); err != nil {
					return err
				}
				return printJSON(cmd, a.r.State())
			}),
		},
		&cobra.Command{
			Use:   "session",
			Short: "Print the active session from the local token or the session cookie",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
				sess, err := a.r.Session(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, sess)
			}),
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Read connect/disconnect lines from stdin and print every auth state change",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
				return watch(ctx, a, cmd)
			}),
		},
		serveCmd(&cfg),
	)
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func watch(ctx context.Context, a *app, cmd *cobra.Command) error {
	updates, cancel := a.store.Updates()
	defer cancel()
	go func() {
		for state := range updates {
			_ = printJSON(cmd, state)
		}
	}()

	signals := make(chan core.WalletSignal)
	go func() {
		defer close(signals)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			var sig core.WalletSignal
			switch strings.TrimSpace(sc.Text()) {
			case "connect":
				sig = a.wallet.Connect()
			case "disconnect":
				sig = a.wallet.Disconnect()
			case "signin":
				if _, err := a.r.SignIn(ctx); err != nil {
					a.log.Error("sign-in failed", "error", err)
				}
				continue
			case "signout":
				if err := a.r.SignOut(ctx); err != nil {
					a.log.Error("sign-out failed", "error", err)
				}
				continue
			default:
				continue
			}
			select {
			case signals <- sig:
			case <-ctx.Done():
				return
			}
		}
	}()

	err := a.r.Watch(ctx, signals, a.cfg.Settle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reference session service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	key, err := loadSigningKey(cfg.Server.SigningKey, log)
	if err != nil {
		return err
	}

	mem := store.NewMemoryStore()
	var (
		nonces   ports.NonceStore      = mem
		revoked  ports.RevocationStore = mem
		eventPub ports.EventPublisher  = events.NopPublisher{}
	)

	if cfg.Server.Store == "redis" || cfg.Events == "redis" {
		client, err := newRedisClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if cfg.Server.Store == "redis" {
			redisStore := store.NewRedisStore(client)
			nonces, revoked = redisStore, redisStore
		}
		if cfg.Events == "redis" {
			pub, err := newPublisher(cfg, client)
			if err != nil {
				return fmt.Errorf("failed to create publisher: %w", err)
			}
			defer pub.Close()
			eventPub = events.NewWatermillPublisher(pub)
		}
	}

	sessions := service.NewSessionService(
		tokenizer.NewJWTTokenizer(key, cfg.Server.Issuer),
		nonces,
		revoked,
		eventPub,
		service.SessionConfig{
			Domains:    []string{cfg.Domain()},
			Evaluators: cfg.Server.Evaluators,
			NonceTTL:   cfg.Server.NonceTTL,
			TokenTTL:   cfg.Server.TokenTTL,
		},
		log,
	)

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.SetupRouter(sessions, transport.RouterConfig{
		AllowedOrigins: []string{strings.TrimRight(cfg.Origin, "/")},
		SecureCookie:   cfg.Server.SecureCookie,
		CookieTTL:      cfg.Server.TokenTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("session service listening", "addr", srv.Addr, "domain", cfg.Domain())
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	log.Info("session service stopped")
	return nil
}
