package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/logging"
	"github.com/BioHazard786/warpcall/internal/ui"
)

var errNoTURN = errors.New("relay mode requires a TURN server")

// clientFlags are shared by every command that connects as a peer.
type clientFlags struct {
	opts     config.ClientOptions
	insecure bool
}

func (f *clientFlags) register(cmd *cobra.Command, withICE bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.opts.ConfigFile, "config", "c", "", "YAML config file (or WARPCALL_CONFIG)")
	fs.StringVar(&f.opts.ServerURL, "server", "", "signaling server URL (default "+config.DefaultServerURL+")")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "skip TLS certificate verification for wss:// servers")
	fs.StringVarP(&f.opts.LogLevel, "log-level", "l", "", "debug, info, warn or error")

	if withICE {
		fs.StringVarP(&f.opts.STUNServer, "stun", "s", "", "custom STUN server")
		fs.StringVarP(&f.opts.TURNServer, "turn", "t", "", "custom TURN server")
		fs.StringVarP(&f.opts.TURNUser, "turn-user", "u", "", "TURN username")
		fs.StringVarP(&f.opts.TURNPass, "turn-pass", "p", "", "TURN password")
		fs.BoolVarP(&f.opts.ForceRelay, "relay", "r", false, "force relay mode")
	}
}

// ConnectionContext is a registered signaling session plus the config it
// was opened with.
type ConnectionContext struct {
	Client  *client.Client
	Handler *client.Handler
	Config  *config.Client
}

func (c *ConnectionContext) Signal() call.Signal {
	return call.Signal{Client: c.Client, Handler: c.Handler}
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// loadClientConfig resolves the client config and installs the logger.
func (f *clientFlags) loadClientConfig() (*config.Client, error) {
	cfg, err := config.LoadClient(f.opts)
	if err != nil {
		return nil, client.NewError("load config", err)
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, client.WrapError("load config", errNoTURN, "--relay needs --turn")
	}
	logging.Init(cfg.LogLevel)
	return cfg, nil
}

func (f *clientFlags) dialer() *websocket.Dialer {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		NetDialContext:   client.NewResolver().DialContext,
	}
	if f.insecure {
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return d
}

// connect opens a session and waits for the server to assign an id.
func (f *clientFlags) connect(ctx context.Context) (*ConnectionContext, error) {
	cfg, err := f.loadClientConfig()
	if err != nil {
		return nil, err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to " + cfg.ServerURL + "...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c, h, err := client.Open(ctx, cfg.ServerURL, f.dialer(), nil)
	if err != nil {
		return nil, err
	}
	return &ConnectionContext{Client: c, Handler: h, Config: cfg}, nil
}
