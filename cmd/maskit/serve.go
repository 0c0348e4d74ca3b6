package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/guillermoBallester/maskit/internal/adapter/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the masking tools over MCP (stdio or http)",
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rt.close(shutdownCtx); err != nil {
					rt.logger.Warn("shutdown", slog.String("error", err.Error()))
				}
			}()

			rt.logger.Info("starting maskit",
				slog.String("version", version),
				slog.String("log_level", rt.cfg.LogLevel.String()),
				slog.String("transport", rt.cfg.Transport),
			)

			mcpServer := mcp.NewServer(version, rt.masks, rt.logger, rt.tracer, rt.inst)

			if rt.cfg.Transport == "http" {
				return serveHTTP(ctx, rt, mcpServer)
			}

			// Run MCP over stdio (stdin/stdout).
			stdioServer := mcpserver.NewStdioServer(mcpServer)

			rt.logger.Info("serving MCP over stdio")
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}

			rt.logger.Info("shutdown complete")
			return nil
		},
	}
}

func serveHTTP(ctx context.Context, rt *runtime, mcpServer *mcpserver.MCPServer) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/mcp", bearerAuthMiddleware(mcpserver.NewStreamableHTTPServer(mcpServer), rt.cfg.HTTPBearerToken))

	srv := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           recoveryMiddleware(mux, rt.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("serving MCP over http", slog.String("addr", rt.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	rt.logger.Info("shutdown complete")
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// bearerAuthMiddleware rejects requests whose Authorization header does not
// carry token.
func bearerAuthMiddleware(next http.Handler, token string) http.Handler {
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="maskit"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoveryMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in http handler",
					slog.String("path", r.URL.Path),
					slog.String("panic", strings.TrimSpace(fmt.Sprint(rec))),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
