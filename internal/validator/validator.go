package validator

// Validator is the request validator shared by services and handlers.
type Validator = BusinessValidator

// New creates the canonical validator with all business rules registered.
func New() *Validator {
	return NewBusinessValidator()
}
