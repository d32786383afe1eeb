package booking

import "backend-birdtours/internal/shared/apperr"

func validateShape(participants int, total float64, departure, ret *Date) error {
	if participants < 1 {
		return apperr.Validation("participants must be at least 1")
	}
	if total < 0 {
		return apperr.Validation("total_amount cannot be negative")
	}
	if departure != nil && ret != nil && ret.Before(*departure) {
		return apperr.Validation("return_date cannot be before departure_date")
	}
	return nil
}
