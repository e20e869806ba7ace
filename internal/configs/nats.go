package config

import (
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

func NewNatsConnection(url string) *nats.Conn {
	nc, err := nats.Connect(url,
		nats.Name("insightforge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}

	return nc
}
