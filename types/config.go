package types

import (
	"time"
)

type RequestConfig struct {
	// RequestQueueSize is the buffer of each live wave listener channel.
	RequestQueueSize int
	RequestTimeout   time.Duration
}

func DefaultConfig() *RequestConfig {
	return &RequestConfig{
		RequestQueueSize: 30,
		RequestTimeout:   time.Minute * 5,
	}
}
