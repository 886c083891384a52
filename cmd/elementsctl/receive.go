package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vantutran2k1/elements/internal/events"
)

func newReceiveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Run a webhook endpoint that prints the change events posted to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              v.GetString("receive.addr"),
				Handler:           receiverRouter(events.NewWriterNotifier(cmd.OutOrStdout())),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serveUntilDone(ctx, srv)
		},
	}

	cmd.Flags().String("addr", ":9999", "listen address")
	_ = v.BindPFlag("receive.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func receiverRouter(n events.Notifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook-receiver", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var ev events.Event
		if err := json.Unmarshal(body, &ev); err != nil || ev.Kind == "" {
			http.Error(w, "body is not an element event", http.StatusBadRequest)
			return
		}

		if err := n.Notify(r.Context(), ev); err != nil {
			slog.Error("failed to print event", "error", err)
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook receiver listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
