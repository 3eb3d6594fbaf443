package pricing

import (
	"sync"
	"testing"

	"github.com/mmeshcher/airtime-desk/internal/model"
)

var testPolicy = Policy{
	DiscountThreshold: 10,
	DiscountPercent:   10,
}

func TestQuoteAirtimeUsesConversionRate(t *testing.T) {
	pkg := model.Package{Name: "airtime 50", Kind: model.KindAirtime, Amount: 50}

	amount, label := testPolicy.Quote(pkg, 1300, 0)
	if amount != 65000 {
		t.Fatalf("expected 50*1300=65000, got %d", amount)
	}
	if label != "" {
		t.Fatalf("expected no discount label, got %q", label)
	}
}

func TestQuoteDataIgnoresConversionRate(t *testing.T) {
	pkg := model.Package{Name: "1GB", Kind: model.KindData, Amount: 35000}

	amount, _ := testPolicy.Quote(pkg, 1300, 0)
	if amount != 35000 {
		t.Fatalf("data package must not be converted, got %d", amount)
	}
}

func TestQuoteDiscountBoundary(t *testing.T) {
	pkg := model.Package{Name: "1GB", Kind: model.KindData, Amount: 35000}

	amount, label := testPolicy.Quote(pkg, 1300, 9)
	if amount != 35000 || label != "" {
		t.Fatalf("9 completed orders must get full price, got %d (%q)", amount, label)
	}

	amount, label = testPolicy.Quote(pkg, 1300, 10)
	if amount != 31500 {
		t.Fatalf("10 completed orders must get 10%% off, got %d", amount)
	}
	if label == "" {
		t.Fatal("expected discount label at threshold")
	}
}

func TestQuoteDiscountFloors(t *testing.T) {
	pkg := model.Package{Name: "odd", Kind: model.KindData, Amount: 99}

	amount, _ := testPolicy.Quote(pkg, 1, 10)
	// 99 - floor(99*10/100) = 99 - 9 = 90
	if amount != 90 {
		t.Fatalf("expected floored discount 90, got %d", amount)
	}
}

func TestQuoteDeterministic(t *testing.T) {
	pkg := model.Package{Name: "airtime 100", Kind: model.KindAirtime, Amount: 100}

	a1, l1 := testPolicy.Quote(pkg, 1300, 12)
	a2, l2 := testPolicy.Quote(pkg, 1300, 12)
	if a1 != a2 || l1 != l2 {
		t.Fatalf("quote must be deterministic: (%d,%q) vs (%d,%q)", a1, l1, a2, l2)
	}
}

func TestRateConcurrentAccess(t *testing.T) {
	r := NewRate(1300)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Set(1400)
		}()
		go func() {
			defer wg.Done()
			_ = r.Get()
		}()
	}
	wg.Wait()

	if got := r.Get(); got != 1400 {
		t.Fatalf("expected final rate 1400, got %d", got)
	}
}

func TestRateRejectsNonPositive(t *testing.T) {
	r := NewRate(1300)

	if err := r.Set(0); err == nil {
		t.Fatal("expected error for zero rate")
	}
	if err := r.Set(-5); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if got := r.Get(); got != 1300 {
		t.Fatalf("rejected update must not change rate, got %d", got)
	}
}
