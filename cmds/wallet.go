package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var WalletCmds = &cli.Command{
	Name:        "wallet",
	Usage:       "wallet cmds",
	Subcommands: []*cli.Command{listAccountsCmd, connectCmd, statusCmd, switchAccountCmd},
}

var listAccountsCmd = &cli.Command{
	Name:  "accounts",
	Usage: "list accounts the wallet already authorized",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		accounts, err := api.Accounts(cctx.Context)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("no authorized account")
			return nil
		}
		for _, account := range accounts {
			fmt.Println(account.Hex())
		}
		return nil
	},
}

var connectCmd = &cli.Command{
	Name:  "connect",
	Usage: "ask the wallet for access and activate the first account",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		account, err := api.Connect(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("connected %s\n", account.Hex())
		return nil
	},
}

var switchAccountCmd = &cli.Command{
	Name:      "switch",
	Usage:     "activate another authorized account",
	ArgsUsage: "<account>",
	Action: func(cctx *cli.Context) error {
		account, err := parseAccount(cctx.Args().First())
		if err != nil {
			return err
		}

		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		if err := api.SwitchAccount(cctx.Context, account); err != nil {
			return err
		}
		fmt.Printf("switched to %s\n", account.Hex())
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "show connection state",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		status, err := api.Status(cctx.Context)
		if err != nil {
			return err
		}
		statusBytes, err := json.MarshalIndent(status, " ", "\t")
		if err != nil {
			return err
		}
		fmt.Println(string(statusBytes))
		return nil
	},
}
