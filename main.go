package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/etherlabsio/healthcheck/v2"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"
	"github.com/ipfs-force-community/metrics"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	multiaddr "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/plugin/ochttp"

	"github.com/ipfs-force-community/sophon-waveportal/api"
	"github.com/ipfs-force-community/sophon-waveportal/cmds"
	"github.com/ipfs-force-community/sophon-waveportal/config"
	"github.com/ipfs-force-community/sophon-waveportal/feed"
	waveMetrics "github.com/ipfs-force-community/sophon-waveportal/metrics"
	"github.com/ipfs-force-community/sophon-waveportal/proxy"
	"github.com/ipfs-force-community/sophon-waveportal/relay"
	"github.com/ipfs-force-community/sophon-waveportal/session"
	"github.com/ipfs-force-community/sophon-waveportal/utils"
	"github.com/ipfs-force-community/sophon-waveportal/version"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
	"github.com/ipfs-force-community/sophon-waveportal/waveevent"
)

var log = logging.Logger("main")

func main() {
	_ = logging.SetLogLevel("*", "INFO")

	app := &cli.App{
		Name:  "sophon-waveportal",
		Usage: "wave portal daemon and client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Usage:   "directory holding config and token",
				EnvVars: []string{"WAVEPORTAL_REPO"},
				Value:   config.DefaultRepo,
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "host address and port the api will listen on",
			},
		},
		Commands: []*cli.Command{
			initCmd, runCmd, cmds.WalletCmds, cmds.WavesCmds, cmds.WaveCmds, cmds.ProxyCmds,
		},
	}
	app.Version = version.UserVersion
	if err := app.Run(os.Args); err != nil {
		log.Warn(err)
		os.Exit(1)
	}
}

var configFlags = []cli.Flag{
	&cli.StringFlag{Name: "node", Usage: "url of the chain node"},
	&cli.StringFlag{Name: "wallet-type", Usage: "rpc or keystore"},
	&cli.StringFlag{Name: "wallet-url", Usage: "url of the rpc wallet"},
	&cli.StringFlag{Name: "keystore", Usage: "keystore directory of the keystore wallet"},
	&cli.StringFlag{Name: "passphrase-file", Usage: "file holding the keystore passphrase, prompt when empty"},
	&cli.StringFlag{Name: "contract", Usage: "address of the WavePortal contract"},
	&cli.StringFlag{Name: "redis", Usage: "redis url to relay live waves to"},
}

func applyFlags(cctx *cli.Context, cfg *config.Config) {
	if cctx.IsSet("listen") {
		cfg.API.ListenAddress = cctx.String("listen")
	}
	if cctx.IsSet("node") {
		cfg.Node.URL = cctx.String("node")
	}
	if cctx.IsSet("wallet-type") {
		cfg.Wallet.Type = cctx.String("wallet-type")
	}
	if cctx.IsSet("wallet-url") {
		cfg.Wallet.URL = cctx.String("wallet-url")
	}
	if cctx.IsSet("keystore") {
		cfg.Wallet.KeystoreDir = cctx.String("keystore")
	}
	if cctx.IsSet("passphrase-file") {
		cfg.Wallet.PassphraseFile = cctx.String("passphrase-file")
	}
	if cctx.IsSet("contract") {
		cfg.Contract.Address = cctx.String("contract")
	}
	if cctx.IsSet("redis") {
		cfg.Relay.Redis = cctx.String("redis")
	}
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "write the default config into the repo",
	Flags: configFlags,
	Action: func(cctx *cli.Context) error {
		repo, err := cmds.RepoPath(cctx)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(repo, 0755); err != nil {
			return err
		}
		cfgPath := filepath.Join(repo, config.ConfigFile)
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists", cfgPath)
		}

		cfg := config.DefaultConfig()
		applyFlags(cctx, cfg)
		if err := config.WriteConfig(cfgPath, cfg); err != nil {
			return err
		}
		log.Infof("write config to %s", cfgPath)
		return nil
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start sophon-waveportal daemon",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "jaeger-proxy", EnvVars: []string{"WAVEPORTAL_JAEGER_PROXY"}},
		&cli.Float64Flag{Name: "trace-sampler", EnvVars: []string{"WAVEPORTAL_TRACE_SAMPLER"}, Value: 1.0},
		&cli.StringFlag{Name: "trace-node-name", Value: "sophon-waveportal"},
	}, configFlags...),
	Action: func(cctx *cli.Context) error {
		repo, err := cmds.RepoPath(cctx)
		if err != nil {
			return err
		}
		cfg, err := config.ReadConfig(filepath.Join(repo, config.ConfigFile))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			log.Warnf("no config in %s, use default", repo)
			cfg = config.DefaultConfig()
			if err := os.MkdirAll(repo, 0755); err != nil {
				return err
			}
		}
		applyFlags(cctx, cfg)

		tCnf := &metrics.TraceConfig{}
		if jaegerProxy := strings.TrimSpace(cctx.String("jaeger-proxy")); len(jaegerProxy) != 0 {
			tCnf.JaegerTracingEnabled = true
			tCnf.ProbabilitySampler = cctx.Float64("trace-sampler")
			tCnf.JaegerEndpoint = jaegerProxy
			tCnf.ServerName = strings.TrimSpace(cctx.String("trace-node-name"))
		}
		return RunMain(cctx.Context, repo, cfg, tCnf)
	},
}

func newWalletProvider(ctx context.Context, cfg *config.WalletConfig) (wallet.Provider, func(), error) {
	switch cfg.Type {
	case config.WalletRPC:
		if cfg.URL == "" {
			return nil, func() {}, nil
		}
		p, err := wallet.DialRPCProvider(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("dial wallet %s: %w", cfg.URL, err)
		}
		return p, p.Close, nil
	case config.WalletKeystore:
		if cfg.KeystoreDir == "" {
			return nil, func() {}, nil
		}
		dir, err := expandPath(cfg.KeystoreDir)
		if err != nil {
			return nil, nil, err
		}
		return wallet.NewKeystoreProvider(dir, cmds.PassphrasePrompt(cfg.PassphraseFile)), func() {}, nil
	case "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown wallet type %s", cfg.Type)
	}
}

func RunMain(ctx context.Context, repo string, cfg *config.Config, tCnf *metrics.TraceConfig) error {
	portalCfg, err := cfg.PortalConfig()
	if err != nil {
		return err
	}
	requestCfg, err := cfg.RequestConfig()
	if err != nil {
		return err
	}

	log.Infof("sophon-waveportal current version %s, listen %s", version.UserVersion, cfg.API.ListenAddress)

	rpcClient, err := rpc.DialContext(ctx, cfg.Node.URL)
	if err != nil {
		return fmt.Errorf("dial node %s: %w", cfg.Node.URL, err)
	}
	node := ethclient.NewClient(rpcClient)
	defer node.Close()

	provider, closeProvider, err := newWalletProvider(ctx, cfg.Wallet)
	if err != nil {
		return err
	}
	defer closeProvider()
	gateway := wallet.NewGateway(provider)
	if !gateway.HasProvider() {
		log.Warn("no wallet configured, the portal is read only")
	}

	sess := session.NewSession(ctx, gateway, node, portalCfg, nil, logging.Logger("session").With())
	defer sess.Close()

	waveStream := waveevent.NewWaveEventStream(ctx, requestCfg)
	sess.AddSink(waveStream)

	broadcaster := feed.NewBroadcaster(requestCfg.RequestQueueSize, sess.Waves)
	defer broadcaster.Close()
	sess.AddSink(broadcaster)

	if len(cfg.Relay.Redis) > 0 {
		redisClient, err := relay.NewRedisClient(ctx, cfg.Relay.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close() //nolint
		sess.AddSink(relay.NewRedisRelay(redisClient, cfg.Relay.Channel))
		log.Infof("relay live waves to redis channel %s", cfg.Relay.Channel)
	}

	if err := sess.Restore(ctx); err != nil {
		log.Warnf("restore session: %v", err)
	}

	reverseProxy := proxy.NewProxy()
	if cfg.Node.Proxy {
		if err := reverseProxy.RegisterReverse(proxy.HostNode, cfg.Node.URL); err != nil {
			return err
		}
	}
	if cfg.Wallet.Type == config.WalletRPC && len(cfg.Wallet.URL) > 0 {
		if err := reverseProxy.RegisterReverse(proxy.HostWallet, cfg.Wallet.URL); err != nil {
			return err
		}
	}

	portalAPIImpl := api.NewWavePortalAPIImpl(sess, gateway, waveStream, reverseProxy, requestCfg)

	var fullNode api.WavePortalStruct
	api.PermissionProxy(portalAPIImpl, &fullNode)

	if err := waveMetrics.SetupMetrics(ctx, cfg.Metrics, portalAPIImpl); err != nil {
		return err
	}

	log.Info("Setting up control endpoint at " + cfg.API.ListenAddress)

	router := mux.NewRouter()
	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(api.APINamespace, &fullNode)
	router.Handle("/rpc/v0", rpcServer)
	router.Handle("/feed", broadcaster)
	router.PathPrefix("/").Handler(http.DefaultServeMux)

	localJwt, err := utils.NewLocalJwtClient(repo)
	if err != nil {
		return fmt.Errorf("make token failed:%s", err.Error())
	}
	err = localJwt.SaveToken()
	if err != nil {
		return err
	}

	var handler http.Handler = &utils.AuthHandler{
		Verify: localJwt.Verify,
		Next:   reverseProxy.ProxyMiddleware(router).ServeHTTP,
	}

	if repoter, err := metrics.RegisterJaeger(tCnf.ServerName, tCnf); err != nil {
		log.Fatalf("register %s JaegerRepoter to %s failed:%s", tCnf.ServerName, tCnf.JaegerEndpoint, err)
	} else if repoter != nil {
		log.Infof("register jaeger-tracing exporter to %s, with node-name:%s", tCnf.JaegerEndpoint, tCnf.ServerName)
		defer metrics.UnregisterJaeger(repoter)
		handler = &ochttp.Handler{Handler: handler}
	}

	root := mux.NewRouter()
	root.Handle("/healthcheck", healthcheck.Handler(
		healthcheck.WithTimeout(5*time.Second),
		healthcheck.WithChecker("node", healthcheck.CheckerFunc(func(ctx context.Context) error {
			_, err := node.BlockNumber(ctx)
			return err
		})),
		healthcheck.WithChecker("wallet", healthcheck.CheckerFunc(func(ctx context.Context) error {
			if !gateway.HasProvider() {
				return errors.New("no wallet provider")
			}
			return nil
		})),
	))
	root.PathPrefix("/").Handler(handler)

	srv := &http.Server{Handler: root}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-ctx.Done():
			log.Warn("received shutdown")
		}

		log.Info("Shutting down...")
		if err := srv.Shutdown(context.TODO()); err != nil {
			log.Errorf("shutting down RPC server failed: %s", err)
		}
	}()
	addr, err := multiaddr.NewMultiaddr(cfg.API.ListenAddress)
	if err != nil {
		return err
	}

	nl, err := manet.Listen(addr)
	if err != nil {
		return err
	}

	log.Infof("start to rpc listen %s", nl.Addr())
	if err = srv.Serve(manet.NetListener(nl)); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("Graceful shutdown successful")
	return nil
}

func expandPath(p string) (string, error) {
	return homedir.Expand(p)
}
