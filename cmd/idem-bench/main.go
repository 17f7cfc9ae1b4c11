package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/idemlock/go-idemlock/v1/idem"
	"github.com/idemlock/go-idemlock/v1/keys"
	"github.com/idemlock/go-idemlock/v1/retry"
	"github.com/idemlock/go-idemlock/v1/store"
)

var (
	concurrency = flag.Int("c", 50, "Concurrent workers")
	requests    = flag.Int("n", 10000, "Total requests")
	resources   = flag.Int("r", 100, "Distinct resources (lower = more contention)")
	target      = flag.String("target", "memory", "Target: memory, redis")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis address")
	workTime    = flag.Duration("work", time.Millisecond, "Simulated work duration")
)

type benchResult struct {
	Success bool `json:"success"`
}

func (r benchResult) Failed() bool { return !r.Success }

func main() {
	flag.Parse()

	var backend store.Store
	switch *target {
	case "memory":
		s := store.NewInMemory()
		defer s.Close()
		backend = s
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer func() { _ = client.Close() }()
		backend = store.NewRedis(client)
	default:
		log.Fatalf("unknown target %q", *target)
	}

	runner := idem.NewFromStore[benchResult](backend,
		idem.WithLockTTL[benchResult](10*time.Second),
		idem.WithResultTTL[benchResult](time.Hour),
		idem.WithRetryPolicy[benchResult](retry.Policy{
			Base:        5 * time.Millisecond,
			Cap:         50 * time.Millisecond,
			MaxAttempts: 3,
		}),
	)

	ctx := context.Background()
	var executed, cached, conflicted, failed atomic.Int64
	jobs := make(chan int, *requests)
	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				resourceID := fmt.Sprintf("res-%d", i%*resources)
				out, err := runner.Run(ctx, "bench", resourceID, keys.Params{"round": i / *resources},
					func(ctx context.Context) (benchResult, error) {
						time.Sleep(*workTime)
						return benchResult{Success: true}, nil
					})
				if err != nil {
					failed.Add(1)
					continue
				}
				switch out.Status {
				case idem.StatusExecuted:
					executed.Add(1)
				case idem.StatusCached:
					cached.Add(1)
				case idem.StatusConflict:
					conflicted.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("| %-10s | %-10s | %-10s | %-10s | %-10s |\n", "Ops/sec", "Executed", "Cached", "Conflict", "Errors")
	fmt.Println("|:---|:---|:---|:---|:---|")
	fmt.Printf("| %-10.0f | %-10d | %-10d | %-10d | %-10d |\n",
		float64(*requests)/elapsed.Seconds(),
		executed.Load(), cached.Load(), conflicted.Load(), failed.Load())
}
