package config

import (
	"log"

	"github.com/redis/rueidis"
)

// NewRedisClient connects the client used by the redis job queue and the mock
// AI result store. Client side caching is not used by either.
func NewRedisClient(addr string) rueidis.Client {
	redisClient, err := rueidis.NewClient(
		rueidis.ClientOption{
			InitAddress:  []string{addr},
			ClientName:   "insightforge",
			DisableCache: true,
		},
	)
	if err != nil {
		log.Fatalf("failed to create redis client: %v", err)
	}

	return redisClient
}
