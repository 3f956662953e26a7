package cli

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/ingress"
	"github.com/conduitflow/conduit/pkg/realtime"
)

// NewServeCommand creates the serve command: the HTTP surface for webhook
// and Telegram ingress plus the realtime websocket endpoint.
func NewServeCommand() *cobra.Command {
	var (
		addr    string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Conduit server",
		Long: `Run the HTTP server exposing:

  GET/POST /api/webhooks/workflow?workflowId=...  production webhook ingress
  POST     /api/webhooks/telegram?workflowId=...  Telegram bot update ingress
  GET      /api/realtime?token=...                websocket status stream
  POST     /api/realtime/token                    subscription token minting
  GET      /healthz                               liveness probe

The realtime signing secret comes from CONDUIT_REALTIME_SECRET; a random
one is generated per process when unset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			dispatcher := engine.NewDispatcher(a.orch, workers, a.log)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			dispatcher.Start(ctx)

			issuer := realtime.NewTokenIssuer(realtimeSecret())

			mux := http.NewServeMux()
			mux.Handle("/api/webhooks/workflow", ingress.NewWebhookHandler(a.workflows, dispatcher, a.log))
			mux.Handle("/api/webhooks/telegram", ingress.NewTelegramHandler(a.workflows, dispatcher, a.log))
			mux.Handle("/api/realtime", realtime.NewWSHandler(a.broadcaster, issuer, a.log))
			mux.HandleFunc("/api/realtime/token", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
					return
				}
				token, err := issuer.Issue(GlobalConfig.User, nil)
				if err != nil {
					http.Error(w, "failed to issue token", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
			})
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", addr).Info("conduit server listening")
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				a.log.Info("shutting down")
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.log.WithError(err).Warn("server shutdown was not clean")
			}
			dispatcher.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent run workers")
	return cmd
}

func realtimeSecret() []byte {
	if secret := os.Getenv("CONDUIT_REALTIME_SECRET"); secret != "" {
		return []byte(secret)
	}
	// Tokens from previous processes stop validating after a restart, which
	// is acceptable for a secret nobody configured.
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}
