package integrate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"
	"github.com/ipfs-force-community/metrics"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/plugin/ochttp"

	"github.com/ipfs-force-community/sophon-waveportal/api"
	"github.com/ipfs-force-community/sophon-waveportal/config"
	"github.com/ipfs-force-community/sophon-waveportal/feed"
	"github.com/ipfs-force-community/sophon-waveportal/proxy"
	"github.com/ipfs-force-community/sophon-waveportal/session"
	"github.com/ipfs-force-community/sophon-waveportal/testhelper"
	"github.com/ipfs-force-community/sophon-waveportal/utils"
	"github.com/ipfs-force-community/sophon-waveportal/version"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
	"github.com/ipfs-force-community/sophon-waveportal/waveevent"
)

var log = logging.Logger("mock main")

// MockMain starts the daemon over chain and memWallet. A nil memWallet runs it without a
// wallet provider.
func MockMain(ctx context.Context, repoPath string, chain *testhelper.MockChain, memWallet *testhelper.MemWallet, cfg *config.Config, tCnf *metrics.TraceConfig) (string, []byte, error) {
	portalCfg, err := cfg.PortalConfig()
	if err != nil {
		return "", nil, err
	}
	requestCfg, err := cfg.RequestConfig()
	if err != nil {
		return "", nil, err
	}

	var provider wallet.Provider
	if memWallet != nil {
		provider = memWallet
	}
	gateway := wallet.NewGateway(provider)

	sess := session.NewSession(ctx, gateway, chain, portalCfg, nil, logging.Logger("session").With())
	go func() {
		<-ctx.Done()
		sess.Close()
	}()

	waveStream := waveevent.NewWaveEventStream(ctx, requestCfg)
	sess.AddSink(waveStream)
	broadcaster := feed.NewBroadcaster(requestCfg.RequestQueueSize, sess.Waves)
	sess.AddSink(broadcaster)

	if err := sess.Restore(ctx); err != nil {
		log.Warnf("restore session: %v", err)
	}

	reverseProxy := proxy.NewProxy()
	portalAPIImpl := api.NewWavePortalAPIImpl(sess, gateway, waveStream, reverseProxy, requestCfg)

	log.Infof("sophon-waveportal current version %s", version.UserVersion)
	log.Info("Setting up control endpoint at " + cfg.API.ListenAddress)

	var fullNode api.WavePortalStruct
	api.PermissionProxy(portalAPIImpl, &fullNode)

	router := mux.NewRouter()
	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(api.APINamespace, &fullNode)
	router.Handle("/rpc/v0", rpcServer)
	router.Handle("/feed", broadcaster)
	router.PathPrefix("/").Handler(http.DefaultServeMux)

	localJwt, err := utils.NewLocalJwtClient(repoPath)
	if err != nil {
		return "", nil, err
	}
	if err := localJwt.SaveToken(); err != nil {
		return "", nil, err
	}

	var handler http.Handler = &utils.AuthHandler{
		Verify: localJwt.Verify,
		Next:   reverseProxy.ProxyMiddleware(router).ServeHTTP,
	}

	log.Infof("trace config %v", tCnf)
	repoter, err := metrics.RegisterJaeger(tCnf.ServerName, tCnf)
	if err != nil {
		return "", nil, fmt.Errorf("register jaeger exporter failed %v", tCnf)
	}
	if repoter != nil {
		log.Info("register jaeger exporter success!")

		defer metrics.UnregisterJaeger(repoter)
		handler = &ochttp.Handler{Handler: handler}
	}

	srv := httptest.NewServer(handler)
	go func() {
		<-ctx.Done()
		broadcaster.Close()
		srv.Close()
	}()
	return srv.URL, localJwt.Token, nil
}
