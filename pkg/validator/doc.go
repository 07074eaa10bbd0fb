// Package validator builds small declarative validation rules and evaluates
// them together.
//
// Each rule constructor returns a Rule holding a Check func and the
// ValidationError reported when it fails. Apply runs every rule and returns
// the failures as ValidationErrors, which implements error:
//
//	err := validator.Apply(
//		validator.Required("email", req.Email),
//		validator.ValidEmail("email", req.Email),
//		validator.If(req.Age != 0, validator.Between("age", req.Age, 10, 100)),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//		details := verrs.Map() // field -> messages
//	}
//
// Rules hold no shared state and are safe for concurrent use.
package validator
