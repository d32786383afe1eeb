package booking

import "testing"

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.Total != 0 || stats.TotalSpent != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if len(stats.ByStatus) != len(Statuses) {
		t.Fatalf("expected a counter for every status, got %v", stats.ByStatus)
	}
	for s, n := range stats.ByStatus {
		if n != 0 {
			t.Fatalf("expected zero for %s, got %d", s, n)
		}
	}
}

func TestComputeStatsExcludesCancelledAndRefunded(t *testing.T) {
	bookings := []Booking{
		{Status: StatusConfirmed, PaymentStatus: PaymentPartial, TotalAmount: 1000},
		{Status: StatusPaid, PaymentStatus: PaymentPaid, TotalAmount: 2500},
		{Status: StatusCancelled, PaymentStatus: PaymentPending, TotalAmount: 800},
		{Status: StatusCompleted, PaymentStatus: PaymentRefunded, TotalAmount: 1200},
		{Status: StatusSaved, PaymentStatus: PaymentPending, TotalAmount: 300},
	}

	stats := ComputeStats(bookings)
	if stats.Total != 5 {
		t.Fatalf("expected 5 bookings, got %d", stats.Total)
	}
	if stats.TotalSpent != 3800 {
		t.Fatalf("expected 3800 spent, got %v", stats.TotalSpent)
	}
	if stats.ByStatus[StatusCancelled] != 1 || stats.ByStatus[StatusInquiry] != 0 {
		t.Fatalf("unexpected per-status counts %v", stats.ByStatus)
	}

	again := ComputeStats(bookings)
	if again.TotalSpent != stats.TotalSpent || again.Total != stats.Total {
		t.Fatalf("expected repeatable stats")
	}
}
