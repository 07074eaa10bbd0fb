package validator

import (
	"fmt"
	"slices"
)

func InList[T comparable](field string, value T, allowed []T) Rule {
	return Rule{
		Check: func() bool {
			return slices.Contains(allowed, value)
		},
		Error: ValidationError{
			Field:   field,
			Code:    "in_list",
			Message: fmt.Sprintf("must be one of: %v", allowed),
		},
	}
}
