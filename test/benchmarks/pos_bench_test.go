package benchmarks

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/posflow/pos-be/internal/core/domain"
	"github.com/posflow/pos-be/internal/core/services"
)

func BenchmarkLedgerLoad(b *testing.B) {
	store := newBenchStore()
	products := seedBenchStore(store, 200, 5, 50)
	ids := productIDs(products)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ledger := services.NewBatchLedger(store, benchLogger())
		if err := ledger.Load(ctx, ids); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLedgerAllocateRelease(b *testing.B) {
	store := newBenchStore()
	products := seedBenchStore(store, 10, 3, 1_000_000)
	ledger := services.NewBatchLedger(store, benchLogger())
	if err := ledger.Load(context.Background(), productIDs(products)); err != nil {
		b.Fatal(err)
	}
	productID := products[0].ID

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch, err := ledger.AllocateOne(productID)
		if err != nil {
			b.Fatal(err)
		}
		if err := ledger.Release(batch.ID, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCartOperations(b *testing.B) {
	taxRate := decimal.NewFromFloat(12.0)

	b.Run("AddUnit", func(b *testing.B) {
		store := newBenchStore()
		products := seedBenchStore(store, 1, 1, 1_000_000_000)
		ledger := services.NewBatchLedger(store, benchLogger())
		if err := ledger.Load(context.Background(), productIDs(products)); err != nil {
			b.Fatal(err)
		}
		cart := services.NewCart(ledger)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := cart.AddUnit(&products[0]); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("AddIncrementDecrement", func(b *testing.B) {
		store := newBenchStore()
		products := seedBenchStore(store, 1, 1, 100)
		ledger := services.NewBatchLedger(store, benchLogger())
		if err := ledger.Load(context.Background(), productIDs(products)); err != nil {
			b.Fatal(err)
		}
		cart := services.NewCart(ledger)
		if err := cart.AddUnit(&products[0]); err != nil {
			b.Fatal(err)
		}
		key := cart.Lines()[0].Key()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := cart.IncrementLine(key); err != nil {
				b.Fatal(err)
			}
			if err := cart.DecrementLine(key); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Totals", func(b *testing.B) {
		store := newBenchStore()
		products := seedBenchStore(store, 50, 1, 100)
		ledger := services.NewBatchLedger(store, benchLogger())
		if err := ledger.Load(context.Background(), productIDs(products)); err != nil {
			b.Fatal(err)
		}
		cart := services.NewCart(ledger)
		for i := range products {
			if err := cart.AddUnit(&products[i]); err != nil {
				b.Fatal(err)
			}
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = cart.Totals(taxRate)
		}
	})
}

func BenchmarkCheckout(b *testing.B) {
	taxRate := decimal.NewFromFloat(12.0)
	ctx := context.Background()

	for _, lines := range []int{1, 10, 50} {
		b.Run(benchName(lines), func(b *testing.B) {
			store := newBenchStore()
			products := seedBenchStore(store, lines, 1, 1_000_000_000)
			checkout := services.NewCheckoutService(store, benchLogger())

			ledger := services.NewBatchLedger(store, benchLogger())
			if err := ledger.Load(ctx, productIDs(products)); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				cart := services.NewCart(ledger)
				for j := range products {
					if err := cart.AddUnit(&products[j]); err != nil {
						b.Fatal(err)
					}
				}
				if _, err := checkout.Checkout(ctx, cart, taxRate, domain.PaymentCash); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func benchName(lines int) string {
	switch lines {
	case 1:
		return "1Line"
	case 10:
		return "10Lines"
	default:
		return "50Lines"
	}
}

func BenchmarkComputeTotals(b *testing.B) {
	lines := make([]domain.CartLine, 100)
	for i := range lines {
		lines[i] = domain.CartLine{
			UnitPrice: decimal.NewFromInt(int64(100 + i)),
			Quantity:  1 + i%5,
		}
	}
	taxRate := decimal.NewFromFloat(12.0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = domain.ComputeTotals(lines, taxRate)
	}
}
