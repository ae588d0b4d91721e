package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/websocket"

	"github.com/ipfs-force-community/sophon-waveportal/feed"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

type WaveClient struct {
	TotalWaves func(ctx context.Context) (uint64, error)
	ListWaves  func(ctx context.Context, limit int) ([]types.WaveRecord, error)
}

func main() {
	ShowWaves()
	FollowFeed()
}

func ShowWaves() {
	ctx := context.Background()
	headers := http.Header{}
	wc := &WaveClient{}
	closer, err := jsonrpc.NewMergeClient(ctx, "ws://127.0.0.1:45133/rpc/v0", "WavePortal", []interface{}{wc}, headers)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer closer()

	count, err := wc.TotalWaves(ctx)
	if err != nil {
		log.Fatal(err)
		return
	}
	waves, err := wc.ListWaves(ctx, 10)
	if err != nil {
		log.Fatal(err)
		return
	}

	fmt.Printf("%d waves in total\n", count)
	for _, wave := range waves {
		fmt.Println(wave.Timestamp, wave.Address.Hex(), wave.Message)
	}
}

func FollowFeed() {
	conn, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:45133/feed", nil)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer conn.Close() //nolint

	for {
		var msg feed.Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatal(err)
			return
		}
		switch msg.Type {
		case feed.MessageSnapshot:
			fmt.Printf("snapshot with %d waves\n", len(msg.Waves))
		case feed.MessageWave:
			fmt.Println("new wave:", msg.Wave.Address.Hex(), msg.Wave.Message)
		}
	}
}
