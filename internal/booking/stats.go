package booking

// ComputeStats aggregates bookings. Spend excludes cancelled bookings and
// refunded payments. Every status appears in ByStatus, zero or not.
func ComputeStats(bookings []Booking) Stats {
	stats := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}

	for _, b := range bookings {
		stats.Total++
		stats.ByStatus[b.Status]++
		if b.Status != StatusCancelled && b.PaymentStatus != PaymentRefunded {
			stats.TotalSpent += b.TotalAmount
		}
	}
	return stats
}
