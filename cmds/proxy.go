package cmds

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-waveportal/proxy"
)

var ProxyCmds = &cli.Command{
	Name:        "proxy",
	Usage:       "manipulate proxy registered in the daemon",
	Subcommands: []*cli.Command{setProxyCmd},
}

var setProxyCmd = &cli.Command{
	Name:  "set",
	Usage: "set proxy (or unset proxy by setting a empty url)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Usage:    fmt.Sprintf("specify which component to proxy, e.g. %s, %s", proxy.NodeNamespace, proxy.WalletNamespace),
			Required: true,
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "the url or multiaddr to redirect to, prefix with \"token:\" when the target needs a bearer token",
		},
	},
	Action: func(cctx *cli.Context) error {
		t := cctx.String("type")
		if _, err := proxy.ParseHostKey(t); err != nil {
			return fmt.Errorf("invalid type %s", t)
		}

		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		u := cctx.String("url")
		err = api.RegisterReverse(cctx.Context, t, u)
		if err != nil {
			return err
		}

		if u == "" {
			fmt.Printf("unset %s success \n", t)
			return nil
		}

		fmt.Printf("set %s to %s success \n", t, u)
		return nil
	},
}
