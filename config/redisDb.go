package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis (REDIS_ADDRESS, default localhost:6379) and
// returns the client plus a distributed lock client built on it. The lock
// client serializes stock reservations across processes; a nil locker is a
// valid configuration for single-process deployments, the inventory ledger
// then relies on transactional row checks alone.
func OpenRedis(ctx context.Context) (*redis.Client, *redislock.Client, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}

	maxAttempts := intFromEnv("REDIS_CONNECT_MAX_ATTEMPTS", 10)
	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return rdb, redislock.New(rdb), nil
		}

		if attempt >= maxAttempts {
			return nil, nil, err
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		time.Sleep(sleep)
	}
}
