package booking

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusSaved, StatusInquiry},
		{StatusInquiry, StatusConfirmed},
		{StatusConfirmed, StatusPaid},
		{StatusPaid, StatusCompleted},
		{StatusSaved, StatusCancelled},
		{StatusPaid, StatusCancelled},
		{StatusConfirmed, StatusConfirmed},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]Status{
		{StatusSaved, StatusPaid},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusSaved},
		{StatusConfirmed, StatusInquiry},
		{Status("lost"), Status("lost")},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
}

func TestCanTransitionPayment(t *testing.T) {
	if !CanTransitionPayment(PaymentPending, PaymentPartial) || !CanTransitionPayment(PaymentPending, PaymentPaid) {
		t.Fatalf("expected pending to advance")
	}
	if !CanTransitionPayment(PaymentPaid, PaymentRefunded) {
		t.Fatalf("expected paid to be refundable")
	}
	if CanTransitionPayment(PaymentPending, PaymentRefunded) || CanTransitionPayment(PaymentRefunded, PaymentPaid) {
		t.Fatalf("unexpected payment transition allowed")
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusCompleted || s == StatusCancelled
		if s.Terminal() != want {
			t.Fatalf("terminal(%s) = %v", s, s.Terminal())
		}
	}
}
