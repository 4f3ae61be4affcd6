package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iwvelando/dealership-quote/pkg/loans"
)

// TestRunner is a simple test runner for debugging
func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

// TestPerformance tests performance characteristics
func TestPerformance(t *testing.T) {
	start := time.Now()
	svc, _ := loadService(t)
	loadTime := time.Since(start)

	ctx := context.Background()
	start = time.Now()
	for i := 0; i < 1000; i++ {
		if _, err := svc.ModelQuote(ctx, "VF 8"); err != nil {
			t.Fatalf("ModelQuote failed: %v", err)
		}
	}
	quoteTime := time.Since(start)

	start = time.Now()
	input := loans.LoanInput{Principal: 1000000000, AnnualRatePercent: 8.5, TermMonths: 96}
	for i := 0; i < 100; i++ {
		schedule, err := svc.Schedule(input, "2026-11")
		if err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
		if len(schedule) != 96 {
			t.Fatalf("expected 96 rows, got %d", len(schedule))
		}
	}
	scheduleTime := time.Since(start)

	totalTime := loadTime + quoteTime + scheduleTime

	t.Logf("Performance metrics:")
	t.Logf("  Load config and seed: %v", loadTime)
	t.Logf("  1000 model quotes: %v", quoteTime)
	t.Logf("  100 schedules: %v", scheduleTime)
	t.Logf("  Total time: %v", totalTime)

	if totalTime > 10*time.Second {
		t.Errorf("Total processing time %v exceeds 10 second threshold", totalTime)
	}
}

// TestConcurrentQuotes runs quotes and catalog reads side by side to exercise the
// store locking under the race detector.
func TestConcurrentQuotes(t *testing.T) {
	svc, _ := loadService(t)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			if _, err := svc.ModelQuote(ctx, "VF 8"); err != nil {
				done <- err
				return
			}
			if _, err := svc.ListModels(ctx); err != nil {
				done <- err
				return
			}
			done <- nil
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent quote failed: %v", err)
		}
	}
}

func BenchmarkModelQuote(b *testing.B) {
	svc, _ := loadService(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.ModelQuote(ctx, "VF 8"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoan(b *testing.B) {
	svc, _ := loadService(b)
	input := loans.LoanInput{Principal: 1000000000, AnnualRatePercent: 8.5, TermMonths: 60}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Loan(input); err != nil {
			b.Fatal(err)
		}
	}
}
