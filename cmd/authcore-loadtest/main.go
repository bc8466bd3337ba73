package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/redisreset"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const seedPassword = "load-test-password"

type accountState struct {
	identifier string
	email      string
	pair       authcore.TokenPair
}

// resetLinks hands reset tokens from the notifier to the confirm phase.
type resetLinks struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (r *resetLinks) SendPasswordReset(_ context.Context, email, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.tokens[email] = u.Query().Get("token")
	r.mu.Unlock()
	return nil
}

func (r *resetLinks) take(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := r.tokens[email]
	delete(r.tokens, email)
	return token
}

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per token phase (validate, refresh)")
		loginOps    = flag.Int("login-ops", 2000, "operations for the login and reset phases")
		cost        = flag.Int("bcrypt-cost", 4, "bcrypt cost used for seeding and logins")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authcore:loadtest", "reset token key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *loginOps <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, ops and login-ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("authcore-loadtest-signing-key-32b")
	cfg.Password.BcryptCost = *cost
	cfg.Password.UpgradeOnLogin = false
	cfg.RateLimit.Enabled = false

	links := &resetLinks{tokens: make(map[string]string)}
	engine, err := authcore.New().
		WithConfig(cfg).
		WithAccountStore(memory.New()).
		WithResetTokenStore(redisreset.New(client, redisreset.Config{Prefix: *prefix})).
		WithNotifier(links).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]accountState, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := 0; i < *accounts; i++ {
		email := fmt.Sprintf("user%d@loadtest.local", i)
		username := fmt.Sprintf("user_%d", i)
		if _, err := engine.Register(ctx, authcore.RegisterRequest{Email: email, Username: username, Password: seedPassword}); err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		pair, err := engine.Login(ctx, username, seedPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = accountState{identifier: username, email: email, pair: pair}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *accountState) error {
		_, err := engine.ValidateAccess(s.pair.AccessToken)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *accountState) error {
		_, err := engine.Refresh(ctx, s.pair.RefreshToken)
		return err
	})
	loginStats := runPhase(states, *loginOps, *concurrency, 4099, func(s *accountState) error {
		_, err := engine.Login(ctx, s.identifier, seedPassword)
		return err
	})
	resetStats := runPhase(states, *loginOps, *concurrency, 3571, func(s *accountState) error {
		if err := engine.RequestPasswordReset(ctx, s.email); err != nil {
			return err
		}
		return engine.ConfirmPasswordReset(ctx, links.take(s.email), seedPassword)
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("login", loginStats)
	printStats("reset", resetStats)
}

// runPhase runs ops calls of fn spread over concurrency workers, each call on
// a random account. Calls on the same account are serialised.
func runPhase(states []accountState, ops, concurrency int, seed int64, fn func(*accountState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		locks     = make([]sync.Mutex, len(states))
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))

				locks[idx].Lock()
				t0 := time.Now()
				err := fn(&states[idx])
				d := time.Since(t0)
				locks[idx].Unlock()
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
