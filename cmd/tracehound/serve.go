package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tracehound/tracehound/pkg/config"
	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
	"github.com/tracehound/tracehound/pkg/server"
)

type projectionServer interface {
	Start(ctx context.Context) error
}

// serveNewServerFn allows tests to stub server construction.
var serveNewServerFn = func(cfg server.Config) projectionServer {
	return server.NewServer(cfg)
}

func runServeCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	serverDefaults := inv.cfg.Server
	if strings.TrimSpace(serverDefaults.Bind) == "" {
		serverDefaults.Bind = config.DefaultServerBind
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	bind := fs.String("bind", serverDefaults.Bind, "address to bind the projection server")
	requireToken := fs.Bool("require-token", serverDefaults.RequireToken, "reject clients that do not supply an auth token")
	publicMetrics := fs.Bool("public-metrics", serverDefaults.PublicMetrics, "expose /metrics without authentication (useful for Prometheus scraping)")
	authTokenFlag := fs.String("auth-token", "", "token clients must supply (default: TRACEHOUND_AUTH_TOKEN or config)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("unexpected argument %q", fs.Arg(0)))
	}

	// Config already folds TRACEHOUND_AUTH_TOKEN into the server block.
	token := strings.TrimSpace(*authTokenFlag)
	if token == "" {
		token = strings.TrimSpace(serverDefaults.AuthToken)
	}

	if *requireToken && token == "" {
		return errors.New(errors.ErrCodeServerBind,
			"--require-token set but no token provided").
			WithRemediation("set TRACEHOUND_AUTH_TOKEN, --auth-token, or server.auth_token in the config")
	}
	bindAddr := strings.TrimSpace(*bind)
	if !config.IsLoopbackBindAddress(bindAddr) && !*requireToken {
		return errors.New(errors.ErrCodeServerBind,
			fmt.Sprintf("refusing to bind to %q without token auth", bindAddr)).
			WithRemediation("bind a loopback address, or pass --require-token with an auth token")
	}

	var access *logging.AccessLogger
	if inv.cfg.Logging.Enabled {
		al, err := logging.NewAccessLogger(logDir(inv.cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: access log unavailable: %v\n", err)
		} else {
			access = al
			defer access.Close()
		}
	}

	srv := serveNewServerFn(server.Config{
		Bind:           bindAddr,
		AuthToken:      token,
		RequireToken:   *requireToken,
		PublicMetrics:  *publicMetrics,
		RateLimitRPS:   serverDefaults.RateLimitRPS,
		RateLimitBurst: serverDefaults.RateLimitBurst,
		ResultsDir:     inv.resultsDir,
		StaleAfter:     inv.staleAfter,
		Version:        version,
		Logger:         inv.logger,
		Access:         access,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Start(ctx)
}
