package main

import (
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-balance-must-flow/internal/api"
	"github.com/Veraticus/the-balance-must-flow/internal/certs"
	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/config"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over a local HTTP API",
		Long: `Serve the ledger as a JSON API for a browser front end.

The server binds to localhost by default. When a PIN is set every request
except /api/health must carry it in the X-Balance-PIN header.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			l, closeLedger, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			if appConfig.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			cfg := api.Config{
				Addr:         appConfig.ServerAddr,
				AllowOrigins: appConfig.CORSOrigins,
			}
			scheme := "http"
			if appConfig.TLS {
				var hosts []string
				if host, _, err := net.SplitHostPort(appConfig.ServerAddr); err == nil && host != "" {
					hosts = append(hosts, host)
				}
				tlsCfg, err := certs.NewFileManager(appConfig.CertDir, hosts...).TLSConfig()
				if err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
				cfg.TLS = tlsCfg
				scheme = "https"
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Certificate fingerprint (SHA-256): "+certs.Fingerprint(tlsCfg.Certificates[0])))
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Listening on %s://%s (Ctrl+C to stop)", scheme, appConfig.ServerAddr)))
			return api.NewServer(l, cfg).Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8750)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	_ = viper.BindPFlag(config.KeyServerAddr, cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag(config.KeyServerTLS, cmd.Flags().Lookup("tls"))

	return cmd
}
