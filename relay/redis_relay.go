package relay

import (
	"context"
	"encoding/json"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("relay")

const DefaultChannel = "waveportal:waves"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay republishes live waves on a redis pub/sub channel.
type RedisRelay struct {
	client  publisher
	channel string
}

// NewRedisClient connects to the redis server at url, e.g. redis://127.0.0.1:6379/0.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	log.Infof("redis connected %s", opts.Addr)
	return client, nil
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	return newRedisRelay(client, channel)
}

func newRedisRelay(client publisher, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) PublishWave(ctx context.Context, rec types.WaveRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Errorf("marshal wave: %s", err)
		return
	}
	receivers, err := r.client.Publish(ctx, r.channel, string(data)).Result()
	if err != nil {
		log.Warnf("publish wave to %s: %s", r.channel, err)
		return
	}
	log.Debugf("wave from %s relayed to %d receivers", rec.Address, receivers)
}

// Subscribe calls handler for every wave relayed on channel until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, channel string, handler func(*types.WaveRecord)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close() //nolint
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rec types.WaveRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					log.Errorf("unmarshal relayed wave: %s", err)
					continue
				}
				handler(&rec)
			}
		}
	}()
	return nil
}
