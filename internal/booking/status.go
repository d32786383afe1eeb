package booking

var nextStatus = map[Status][]Status{
	StatusSaved:     {StatusInquiry, StatusCancelled},
	StatusInquiry:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
}

var nextPayment = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPartial, PaymentPaid},
	PaymentPartial: {PaymentPaid},
	PaymentPaid:    {PaymentRefunded},
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPartial, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// CanTransition reports whether a booking may move from one status to
// another. Staying put is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	for _, s := range nextStatus[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, p := range nextPayment[from] {
		if p == to {
			return true
		}
	}
	return false
}
