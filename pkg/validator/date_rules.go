package validator

import "time"

// DateLayout is the calendar date format accepted by ValidDate.
const DateLayout = time.DateOnly

// ValidDate validates a YYYY-MM-DD calendar date.
func ValidDate(field, value string) Rule {
	return Rule{
		Check: func() bool {
			_, err := time.Parse(DateLayout, value)
			return err == nil
		},
		Error: ValidationError{
			Field:   field,
			Code:    "date",
			Message: "must be a date in YYYY-MM-DD format",
		},
	}
}

// PastDate validates that a YYYY-MM-DD date is not after now. Unparseable
// values pass so ValidDate alone reports them.
func PastDate(field, value string, now time.Time) Rule {
	return Rule{
		Check: func() bool {
			t, err := time.Parse(DateLayout, value)
			return err != nil || !t.After(now)
		},
		Error: ValidationError{
			Field:   field,
			Code:    "past_date",
			Message: "must not be in the future",
		},
	}
}
