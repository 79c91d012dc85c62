package performance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
)

func TestWorkerPoolExecutesTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if !pool.Submit(func() {
			counter.Add(1)
			wg.Done()
		}) {
			t.Fatal("Submit returned false on a running pool")
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("executed %d tasks, want 100", counter.Load())
	}
	stats := pool.Stats()
	if stats.TasksTotal != 100 {
		t.Errorf("TasksTotal = %d, want 100", stats.TasksTotal)
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Stop()

	if pool.Submit(func() {}) {
		t.Error("Submit succeeded on a stopped pool")
	}
	if pool.Stats().Running {
		t.Error("pool still reports running after Stop")
	}
}

func TestWorkerPoolSubmitWait(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Stop()

	ran := false
	if !pool.SubmitWait(func() { ran = true }) {
		t.Fatal("SubmitWait returned false")
	}
	if !ran {
		t.Error("task did not run before SubmitWait returned")
	}
}

func TestBatchProcessorBatching(t *testing.T) {
	var batches [][]int
	proc := NewBatchProcessor(3, func(items []int) error {
		batch := make([]int, len(items))
		copy(batch, items)
		batches = append(batches, batch)
		return nil
	})

	for i := 0; i < 7; i++ {
		if err := proc.Add(i); err != nil {
			t.Fatalf("Add(%d) failed: %v", i, err)
		}
	}
	if err := proc.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 3 || len(batches[1]) != 3 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d/%d/%d, want 3/3/1", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	if batches[2][0] != 6 {
		t.Errorf("final batch item = %d, want 6", batches[2][0])
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 5)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed %d requests from a burst of 5, want 5", allowed)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	limiter.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Wait returned nil on a cancelled context")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// BenchmarkWorkerPool benchmarks single-task submission round trips.
func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(1)
		pool.Submit(func() {
			wg.Done()
		})
		wg.Wait()
	}
}

// BenchmarkWorkerPoolParallel benchmarks parallel task submission.
func BenchmarkWorkerPoolParallel(b *testing.B) {
	pool := NewWorkerPool(8)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			done := make(chan struct{})
			pool.Submit(func() {
				close(done)
			})
			<-done
		}
	})
}

// BenchmarkRateLimiter benchmarks the token bucket under load.
func BenchmarkRateLimiter(b *testing.B) {
	limiter := NewRateLimiter(10000, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

// BenchmarkBatchProcessor benchmarks batched accumulation.
func BenchmarkBatchProcessor(b *testing.B) {
	var processed int64
	proc := NewBatchProcessor(100, func(items []int) error {
		atomic.AddInt64(&processed, int64(len(items)))
		return nil
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		proc.Add(i)
	}
	proc.Flush()
}

// BenchmarkPricers benchmarks each valuation method on a standard contract.
func BenchmarkPricers(b *testing.B) {
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}

	b.Run("Analytic", func(b *testing.B) {
		pricer := pricing.NewAnalyticPricer()
		for i := 0; i < b.N; i++ {
			pricer.Price(contract, market)
		}
	})

	b.Run("Lattice500", func(b *testing.B) {
		pricer := pricing.NewLatticePricer(500)
		for i := 0; i < b.N; i++ {
			pricer.Price(contract, market)
		}
	})

	b.Run("Simulation10k", func(b *testing.B) {
		pricer := pricing.NewSimulationPricer(pricing.SimulationConfig{Paths: 10000, Seed: 42})
		for i := 0; i < b.N; i++ {
			pricer.Price(contract, market)
		}
	})
}

// BenchmarkStrikeSweep benchmarks valuing a strike ladder sequentially,
// with raw goroutines and through the worker pool.
func BenchmarkStrikeSweep(b *testing.B) {
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}
	contracts := make([]models.ContractSpec, 0, 20)
	for k := 80.0; k < 120.0; k += 2.0 {
		contracts = append(contracts, models.ContractSpec{
			Strike: k, Maturity: 0.5, Kind: models.OptionKindPut, Style: models.ExerciseAmerican,
		})
	}
	pricer := pricing.NewLatticePricer(500)

	b.Run("Sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			for _, c := range contracts {
				pricer.Price(c, market)
			}
		}
	})

	b.Run("Goroutines", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var wg sync.WaitGroup
			for _, c := range contracts {
				wg.Add(1)
				go func(c models.ContractSpec) {
					defer wg.Done()
					pricer.Price(c, market)
				}(c)
			}
			wg.Wait()
		}
	})

	b.Run("WorkerPool", func(b *testing.B) {
		pool := NewWorkerPool(4)
		pool.Start()
		defer pool.Stop()

		for i := 0; i < b.N; i++ {
			var wg sync.WaitGroup
			for _, c := range contracts {
				wg.Add(1)
				c := c
				pool.Submit(func() {
					defer wg.Done()
					pricer.Price(c, market)
				})
			}
			wg.Wait()
		}
	})
}

// BenchmarkMemoryFootprint reports allocation totals after a simulation run.
func BenchmarkMemoryFootprint(b *testing.B) {
	contract := models.ContractSpec{Strike: 100, Maturity: 0.25, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}
	pricer := pricing.NewSimulationPricer(pricing.SimulationConfig{Paths: 5000, Seed: 1})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		pricer.Price(contract, market)
	}
	if b.N > 0 {
		stats := ReadMemStats()
		b.Logf("heap %s over %s total", FormatBytes(stats.HeapAlloc), FormatBytes(stats.TotalAlloc))
	}
}
