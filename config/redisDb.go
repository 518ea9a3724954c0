package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Set once the first ping succeeds; Redis is optional, so readers must handle nil.
var (
	rdbPtr    atomic.Pointer[redis.Client]
	lockerPtr atomic.Pointer[redislock.Client]
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdbPtr.Load()
}

// GetRedisLock returns nil until Redis is connected; callers treat that as "no lock available".
func GetRedisLock() *redislock.Client {
	return lockerPtr.Load()
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	rdb := GetRedisDB()
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	rdb := GetRedisDB()
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, objInByte, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	rdb := GetRedisDB()
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, keys...).Result()
	return err
}

// IncrRedisCounter increments key and sets its expiry on first use (fixed-window counters).
func IncrRedisCounter(c context.Context, key string, window time.Duration) (int64, error) {
	rdb := GetRedisDB()
	if rdb == nil {
		return 0, nil
	}
	n, err := rdb.Incr(c, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := rdb.Expire(c, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func init() {
	// Load env from .env
	godotenv.Load()
}

func redisAddress() string {
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// ConnectRedis makes one connection attempt and installs the client when the ping succeeds.
func ConnectRedis() error {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddress(),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
		PoolSize: 100,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	rdbPtr.Store(client)
	lockerPtr.Store(redislock.New(client))
	return nil
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// Call this from main() AFTER the HTTP server is listening.
func ConnectRedisWithRetry() {
	redisAddr := redisAddress()
	var attempt int
	for {
		attempt++
		err := ConnectRedis()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		time.Sleep(sleep)
	}
}
