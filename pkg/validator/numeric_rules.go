package validator

import "fmt"

// Between validates min <= value <= max.
func Between[T Numeric](field string, value, min, max T) Rule {
	return Rule{
		Check: func() bool {
			return value >= min && value <= max
		},
		Error: ValidationError{
			Field:   field,
			Code:    "between",
			Message: fmt.Sprintf("must be between %v and %v", min, max),
		},
	}
}
