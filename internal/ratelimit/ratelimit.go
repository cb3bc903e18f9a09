// Package ratelimit throttles bursts of writes, registration attempts in particular,
// with a token bucket kept in Redis so every server instance shares one budget.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	Methods        []string
	Prefix         string
}

// SubjectFunc names the caller of a request for keying, or returns "" when unknown.
type SubjectFunc func(r *http.Request) string

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals)
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Connect returns a client for addr, or nil when addr is empty or the server does
// not answer. Callers treat nil as "rate limiting off".
func Connect(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("ratelimit: redis at %s unavailable, rate limiting disabled: %v", addr, err)
		client.Close()
		return nil
	}
	return client
}

// Middleware limits requests whose method is in cfg.Methods. It passes everything
// through when disabled or without a client, and fails open on Redis errors.
func Middleware(cfg Config, rdb *redis.Client, subject SubjectFunc) func(http.Handler) http.Handler {
	if !cfg.Enabled || rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	ttl := int64(math.Ceil((time.Duration(cfg.Capacity+5) * cfg.RefillInterval).Seconds()))
	methods := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[strings.ToUpper(strings.TrimSpace(m))] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			key := buildKey(cfg.Prefix, r, subject)
			vals, err := bucketScript.Run(r.Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillInterval.Milliseconds(), ttl).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Printf("ratelimit: bucket %s unavailable, letting request through: %v", key, err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(vals[1], 10))
			if vals[0] != 1 {
				secs := int(math.Ceil(float64(vals[2]) / 1000.0))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded, retry in %d seconds"}`, secs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func buildKey(prefix string, r *http.Request, subject SubjectFunc) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "" {
		ip = "unknown"
	}
	who := ""
	if subject != nil {
		who = subject(r)
	}
	if who == "" {
		who = "anon"
	}
	return strings.Join([]string{prefix, ip, who, r.Method + " " + r.URL.Path}, ":")
}
