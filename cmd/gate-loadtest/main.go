// Command gate-loadtest measures gate decision latency against Redis-backed
// sessions and signed tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/session"
)

var roles = []string{"ADMIN", "FRANCHISE", "CLIENT"}

var paths = []string{"/admin/users", "/franchise/orders", "/account", "/admin/settings"}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "decisions per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", session.DefaultPrefix, "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewRedisStore(client, *prefix)

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		st := buildSession(i)
		ids[i] = st.ID
		if err := store.Set(ctx, st, goGate.DefaultSessionTTL); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	sessionGate := goGate.NewSessionGate(goGate.LegacyRouteTable(), store, goGate.WithLogger(quiet))
	sessionStats := runPhase(*ops, *concurrency, func(r *rand.Rand) *http.Request {
		req := httptest.NewRequest(http.MethodGet, paths[r.Intn(len(paths))], nil)
		req.AddCookie(&http.Cookie{Name: goGate.SessionCookie, Value: ids[r.Intn(len(ids))]})
		return req
	}, sessionGate)

	manager, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(goGate.DevelopmentSecret),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwt manager: %v\n", err)
		os.Exit(1)
	}
	tokens := make([]string, len(roles))
	for i, role := range roles {
		if tokens[i], err = manager.Issue(fmt.Sprintf("u-%d", i), role); err != nil {
			fmt.Fprintf(os.Stderr, "issue: %v\n", err)
			os.Exit(1)
		}
	}
	tokenGate := goGate.NewTokenGate(goGate.DefaultRouteTable(), goGate.NewTokenVerifier(manager, quiet, nil), goGate.WithLogger(quiet))
	tokenStats := runPhase(*ops, *concurrency, func(r *rand.Rand) *http.Request {
		req := httptest.NewRequest(http.MethodGet, paths[r.Intn(len(paths))], nil)
		req.AddCookie(&http.Cookie{Name: goGate.TokenCookie, Value: tokens[r.Intn(len(tokens))]})
		return req
	}, tokenGate)

	fmt.Println("---- results ----")
	printStats("session-gate", sessionStats)
	printStats("token-gate", tokenStats)
}

// runPhase counts a decision as failed when the gate could not reach its
// store; redirects are normal outcomes.
func runPhase(ops, concurrency int, build func(*rand.Rand) *http.Request, gate goGate.Gate) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				req := build(r)
				t0 := time.Now()
				d := gate.Decide(req)
				elapsed := time.Since(t0)
				if d.Reason != nil && isStoreFailure(d.Reason) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func isStoreFailure(err error) bool {
	return errors.Is(err, goGate.ErrStoreUnavailable)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d store_failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSession(i int) *session.State {
	now := time.Now()
	return &session.State{
		ID:        fmt.Sprintf("sid-%d", i),
		UserID:    fmt.Sprintf("u-%d", i),
		Username:  fmt.Sprintf("user%d", i),
		Role:      roles[i%len(roles)],
		CreatedAt: now,
		ExpiresAt: now.Add(goGate.DefaultSessionTTL),
	}
}
