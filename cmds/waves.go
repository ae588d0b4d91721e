package cmds

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-waveportal/relay"
	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/waveevent"
)

var WavesCmds = &cli.Command{
	Name:        "waves",
	Usage:       "inspect the wave list",
	Subcommands: []*cli.Command{listWavesCmd, countWavesCmd, watchWavesCmd, refreshWavesCmd, listenersCmd},
}

var WaveCmds = &cli.Command{
	Name:        "wave",
	Usage:       "send waves",
	Subcommands: []*cli.Command{sendWaveCmd, draftCmd},
}

var listWavesCmd = &cli.Command{
	Name:  "list",
	Usage: "list waves, newest first",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "only show the newest n waves"},
		&cli.BoolFlag{Name: "json", Usage: "print as json"},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		waves, err := api.ListWaves(cctx.Context, cctx.Int("limit"))
		if err != nil {
			return err
		}
		if cctx.Bool("json") {
			wavesBytes, err := json.MarshalIndent(waves, " ", "\t")
			if err != nil {
				return err
			}
			fmt.Println(string(wavesBytes))
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "TIME\tADDRESS\tMESSAGE")
		for _, wave := range waves {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", wave.Timestamp.Local().Format(time.DateTime), wave.Address.Hex(), wave.Message)
		}
		return tw.Flush()
	},
}

var countWavesCmd = &cli.Command{
	Name:  "count",
	Usage: "read the total wave count from the contract",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		count, err := api.TotalWaves(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	},
}

var refreshWavesCmd = &cli.Command{
	Name:  "refresh",
	Usage: "reload every wave from the contract",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.Refresh(cctx.Context)
	},
}

var watchWavesCmd = &cli.Command{
	Name:  "watch",
	Usage: "print live waves as they arrive",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "redis", Usage: "read waves from a redis relay instead of the daemon"},
		&cli.StringFlag{Name: "channel", Usage: "redis relay channel", Value: relay.DefaultChannel},
	},
	Action: func(cctx *cli.Context) error {
		printWave := func(rec *types.WaveRecord) {
			fmt.Printf("%s %s %s\n", rec.Timestamp.Local().Format(time.DateTime), rec.Address.Hex(), rec.Message)
		}

		if url := cctx.String("redis"); url != "" {
			client, err := relay.NewRedisClient(cctx.Context, url)
			if err != nil {
				return err
			}
			defer client.Close() //nolint
			if err := relay.Subscribe(cctx.Context, client, cctx.String("channel"), printWave); err != nil {
				return err
			}
			<-cctx.Context.Done()
			return nil
		}

		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		client := waveevent.NewWaveEventClient(printWave, api, logging.Logger("watch").With())
		client.ListenWaves(cctx.Context)
		return nil
	},
}

var listenersCmd = &cli.Command{
	Name:  "listeners",
	Usage: "list live wave listeners of the daemon",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		listeners, err := api.ListListeners(cctx.Context)
		if err != nil {
			return err
		}
		listenersBytes, err := json.MarshalIndent(listeners, " ", "\t")
		if err != nil {
			return err
		}
		fmt.Println(string(listenersBytes))
		return nil
	},
}

var sendWaveCmd = &cli.Command{
	Name:      "send",
	Usage:     "wave with a message and wait until it is mined",
	ArgsUsage: "[message]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "draft", Usage: "send the current draft instead of an argument"},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		var receipt *types.Receipt
		if cctx.Bool("draft") {
			receipt, err = api.WaveDraft(cctx.Context)
		} else {
			receipt, err = api.Wave(cctx.Context, cctx.Args().First())
		}
		if err != nil {
			if msg := types.UserMessage(err); msg != "" {
				return fmt.Errorf("%s (%w)", msg, err)
			}
			return err
		}
		fmt.Printf("Mined -- %s in block %d\n", receipt.TxHash.Hex(), receipt.BlockNumber)
		return nil
	},
}

var draftCmd = &cli.Command{
	Name:      "draft",
	Usage:     "set the draft message",
	ArgsUsage: "<message>",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewWavePortalClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.SetDraft(cctx.Context, cctx.Args().First())
	},
}

func parseAccount(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid account %q", s)
	}
	return common.HexToAddress(s), nil
}
