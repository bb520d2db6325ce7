// Package main provides the entry point for artcertify.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	artcertify "github.com/ArtCertify/ArtCertify-sub001"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/logging"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/wallet"
	"github.com/ArtCertify/ArtCertify-sub001/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// App creates the CLI application
func App() *cli.App {
	return &cli.App{
		Name:    "artcertify",
		Usage:   "Wallet session and federated login service",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Commands: []*cli.Command{
			serveCommand(),
			deriveCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Restore the persisted session and serve the login surface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"ARTCERTIFY_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			logger := logging.NewLogrusAdapter(logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr))

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger watermill.LoggerAdapter) error {
	svc, err := artcertify.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", err, nil)
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving", watermill.LogFields{"addr": cfg.HTTP.Addr, "version": version})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func deriveCommand() *cli.Command {
	return &cli.Command{
		Name:  "derive",
		Usage: "Print the address derived from a 25-word mnemonic or a 0x-prefixed seed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "Mnemonic or hex seed",
				EnvVars: []string{"ARTCERTIFY_SECRET"},
			},
			&cli.BoolFlag{
				Name:  "generate",
				Usage: "Generate a new account and print its mnemonic",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("generate") {
				account, phrase, err := wallet.GenerateAccount()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "address:  %s\nmnemonic: %s\n", account.Address, phrase)
				return nil
			}

			secret := c.String("secret")
			if secret == "" {
				return cli.Exit("either --secret or --generate is required", 2)
			}

			account, err := wallet.DeriveAccount(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, account.Address)
			return nil
		},
	}
}
