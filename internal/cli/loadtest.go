package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/formwise/authcore/session"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisURL    string
	prefix      string
}

func newLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session lookup and hash rotation throughput",
		Long: `loadtest seeds sessions into Redis and then runs two phases: existence
checks as done on every authenticated request, and compare-and-swap hash
rotations as done on every refresh. Without --redis-url an embedded Redis is
started.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "redis URL; empty starts an embedded server")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "authcore-loadtest", "session key prefix")
	return cmd
}

type seededSession struct {
	mu   sync.Mutex
	id   string
	hash string
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

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, concurrency and ops must be > 0")
	}

	client, cleanup, err := loadtestRedis(opts.redisURL, out)
	if err != nil {
		return err
	}
	defer cleanup()

	store := session.NewRedisStore(client, opts.prefix, time.Hour)

	states := make([]seededSession, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	start := time.Now()
	for i := range states {
		sess, err := store.Create(ctx, fmt.Sprintf("user-%d", i%1000))
		if err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
		states[i].id, states[i].hash = sess.ID, sess.Hash
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))

	exists := runPhase(opts, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		ok, err := store.ExistsByID(ctx, s.id)
		if err == nil && !ok {
			err = session.ErrNotFound
		}
		return err
	})

	rotate := runPhase(opts, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()

		next, err := session.NewHash()
		if err != nil {
			return err
		}
		if _, err := store.UpdateHash(ctx, s.id, s.hash, next); err != nil {
			return err
		}
		s.hash = next
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "exists", exists)
	printStats(out, "rotate", rotate)
	return nil
}

func loadtestRedis(url string, out io.Writer) (redis.UniversalClient, func(), error) {
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		fmt.Fprintf(out, "using redis at %s\n", opts.Addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fmt.Fprintf(out, "using embedded redis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase spreads opts.ops calls of op over opts.concurrency workers and
// records per-call latency.
func runPhase(opts loadtestOptions, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for atomic.AddInt64(&cursor, 1) <= int64(opts.ops) {
				t0 := time.Now()
				err := op(r)
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
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
