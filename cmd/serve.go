package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/logging"
	"github.com/BioHazard786/warpcall/internal/metrics"
	"github.com/BioHazard786/warpcall/internal/server"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/BioHazard786/warpcall/internal/version"
)

var serveOpts config.ServerOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay on a plaintext and a TLS endpoint that share one
peer registry, so peers on either endpoint can call each other.

Examples:
  warpcall serve
  warpcall serve --http :80 --https :443 --cert /etc/ssl/relay.crt --key /etc/ssl/relay.key
  warpcall serve --config warpcall.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(serveOpts)
		if err != nil {
			return err
		}

		logger := logging.Init(cfg.LogLevel)
		logger.Info("starting warpcall", "version", version.Version)

		m := metrics.New()
		router := signaling.NewRouter(signaling.NewRegistry(), m, logger)

		srv, err := server.New(cfg, router, m, logger)
		if err != nil {
			logger.Error("cannot start without tls credentials", "err", err)
			return err
		}

		ctx := cmd.Context()
		routerDone := make(chan struct{})
		go func() {
			defer close(routerDone)
			router.Run(ctx)
		}()

		err = srv.ListenAndServe(ctx)
		if err != nil {
			logger.Error("server stopped", "err", err)
			return err
		}
		<-routerDone
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.ConfigFile, "config", "c", "", "YAML config file (or WARPCALL_CONFIG)")
	f.StringVar(&serveOpts.HTTPAddr, "http", "", "plaintext listen address (default "+config.DefaultHTTPAddr+")")
	f.StringVar(&serveOpts.HTTPSAddr, "https", "", "TLS listen address (default "+config.DefaultHTTPSAddr+")")
	f.StringVar(&serveOpts.CertFile, "cert", "", "TLS certificate file (default "+config.DefaultCertFile+")")
	f.StringVar(&serveOpts.KeyFile, "key", "", "TLS private key file (default "+config.DefaultKeyFile+")")
	f.StringVar(&serveOpts.StaticDir, "static", "", "serve the web client from this directory instead of the bundled one")
	f.StringSliceVar(&serveOpts.AllowedOrigins, "allowed-origin", nil, "origin allowed to open websockets, repeatable (default any)")
	f.DurationVar(&serveOpts.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown limit (default 10s)")
	f.StringVarP(&serveOpts.LogLevel, "log-level", "l", "", "debug, info, warn or error")
}
