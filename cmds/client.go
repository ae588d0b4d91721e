package cmds

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/mitchellh/go-homedir"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-waveportal/api"
	"github.com/ipfs-force-community/sophon-waveportal/config"
)

// RepoPath resolves the --repo flag.
func RepoPath(cctx *cli.Context) (string, error) {
	repo := cctx.String("repo")
	if repo == "" {
		repo = config.DefaultRepo
	}
	return homedir.Expand(repo)
}

// ListenAddress returns --listen, or the api address of the repo config.
func ListenAddress(cctx *cli.Context) (string, error) {
	if cctx.IsSet("listen") {
		return cctx.String("listen"), nil
	}
	repo, err := RepoPath(cctx)
	if err != nil {
		return "", err
	}
	cfg, err := config.ReadConfig(filepath.Join(repo, config.ConfigFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.DefaultConfig().API.ListenAddress, nil
		}
		return "", err
	}
	return cfg.API.ListenAddress, nil
}

func NewWavePortalClient(cctx *cli.Context) (api.IWavePortal, jsonrpc.ClientCloser, error) {
	listen, err := ListenAddress(cctx)
	if err != nil {
		return nil, nil, err
	}
	addr, err := DialArgs(listen)
	if err != nil {
		return nil, nil, err
	}

	repo, err := RepoPath(cctx)
	if err != nil {
		return nil, nil, err
	}
	// a missing token is fine for local calls
	token, err := os.ReadFile(filepath.Join(repo, config.TokenFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	return api.NewWavePortalClient(cctx.Context, addr, api.AuthHeader(strings.TrimSpace(string(token))))
}

func DialArgs(addr string) (string, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err == nil {
		_, addr, err := manet.DialArgs(ma)
		if err != nil {
			return "", err
		}

		return "ws://" + addr + "/rpc/v0", nil
	}

	_, err = url.Parse(addr)
	if err != nil {
		return "", err
	}
	return addr + "/rpc/v0", nil
}
