package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"car-picker/internal/app"
	transport "car-picker/internal/transport/http"
	"github.com/spf13/cobra"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve quiz sessions to a browser page over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = rt.cfg.Serve.Port
			}
			return runServer(cmd.Context(), rt, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides config)")
	return cmd
}

func runServer(ctx context.Context, rt *runtime, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if port == "" {
		port = "8090"
	}

	client, err := newAPIClient(rt.cfg)
	if err != nil {
		return err
	}
	b, err := openBackends(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	factory := func() *app.Controller { return rt.newSession(client, b) }
	router := transport.NewRouter(transport.NewWSHandler(factory, rt.log), rt.log)

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info().Str("port", port).Str("api", rt.cfg.API.URL).Msg("starting car-picker bridge")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		rt.log.Info().Msg("shutting down server")
	case <-ctx.Done():
		rt.log.Info().Msg("context canceled, shutting down server")
	case err := <-errCh:
		rt.log.Error().Err(err).Msg("server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
