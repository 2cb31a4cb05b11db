// Command tenantauth-loadtest measures Authorize and Refresh throughput
// against Redis, or an embedded miniredis when no address is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/password"
	"github.com/MrEthical07/tenantauth/store/memory"
)

const (
	loadPassword = "Load#Test2024"
	loadService  = "svc-load"
)

type session struct {
	access  string
	refresh string
}

type discardMailer struct{}

func (discardMailer) Send(context.Context, string, string, string) error { return nil }

func main() {
	var (
		sessions    = flag.Int("sessions", 1000, "number of signed-in sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (authorize + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
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

	engine, store, err := newEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	states, err := seed(ctx, engine, store, *sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authorizeStats := runPhase(states, *ops, *concurrency, 7919, func(s session) error {
		_, err := engine.Authorize(ctx, s.access, loadService)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s session) error {
		_, err := engine.Refresh(ctx, s.refresh)
		return err
	})

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("cache hits=%d cache write failures=%d\n",
		snap.Counters[tenantauth.MetricAuthorizeCacheHit],
		snap.Counters[tenantauth.MetricCacheWriteFailure],
	)
}

// newEngine uses a cheap Argon2 setting so seeding is dominated by I/O.
func newEngine(client redis.UniversalClient) (*tenantauth.Engine, *memory.Store, error) {
	cfg := tenantauth.DefaultConfig()
	cfg.JWT.Access.PrivateKey = []byte("loadtest-access-" + strings.Repeat("a", 32))
	cfg.JWT.Refresh.PrivateKey = []byte("loadtest-refresh-" + strings.Repeat("r", 32))
	cfg.JWT.MFAChallenge.PrivateKey = []byte("loadtest-mfa-" + strings.Repeat("m", 32))
	cfg.JWT.PasswordReset.PrivateKey = []byte("loadtest-reset-" + strings.Repeat("p", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableSignInThrottle = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	store := memory.New()
	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(store).
		WithMailer(discardMailer{}).
		Build()
	return engine, store, err
}

func seed(ctx context.Context, engine *tenantauth.Engine, store *memory.Store, n int) ([]session, error) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	out := make([]session, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("load-%d", i)
		_, err := store.Put(tenantauth.Principal{
			Username:     username,
			Email:        username + "@load.example",
			PasswordHash: hash,
			Role:         tenantauth.RoleMember,
			IsActive:     true,
			Memberships: []tenantauth.ServiceMembership{
				{ServiceID: loadService, ServiceName: "Load", Role: "member", MemberActive: true, ServiceActive: true},
			},
		})
		if err != nil {
			return nil, err
		}
		res, err := engine.SignIn(ctx, username, loadPassword)
		if err != nil {
			return nil, fmt.Errorf("sign in %s: %w", username, err)
		}
		out[i] = session{access: res.AccessToken, refresh: res.RefreshToken}
	}
	return out, nil
}

func runPhase(states []session, ops, concurrency int, seedMul int64, op func(session) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedMul))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(states[r.Intn(len(states))])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
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
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
