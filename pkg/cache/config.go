package cache

import (
	"net"
	"strconv"
	"time"
)

type RedisOption func(*RedisConfig)

// RedisConfig holds the connection settings of the Redis tier.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisAddr sets the server address.
func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) { c.Addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

// WithRedisAuth selects the database and password.
func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPrefix namespaces every key, e.g. "chartdash:fred:obs:...".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

type MemoryOption func(*MemoryConfig)

type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// WithMemoryMaxSize bounds the number of entries; the least recently used is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxSize = size }
}

func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.CleanupInterval = interval }
}

type LayeredOption func(*LayeredConfig)

// LayeredConfig sizes the memory tier in front of Redis.
type LayeredConfig struct {
	MemoryMaxSize int
	// MemoryTTL bounds how long an L2 hit is kept in L1.
	MemoryTTL time.Duration
}

func WithLayeredMemory(size int, ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		c.MemoryMaxSize = size
		if ttl > 0 {
			c.MemoryTTL = ttl
		}
	}
}
