// Package validation validates configuration and request input.
//
// Struct tag validation uses go-playground/validator and reports failures as
// an errors.AppError with per-field details. The fluent Validator collects
// ad-hoc checks that tags cannot express.
//
// # Struct Tag Validation
//
//	type RunRequest struct {
//	    Multiplier int `json:"multiplier" validate:"gte=1"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Range("multiplier", req.Multiplier, 1, 1000).Custom(len(req.Dataset) > 0, "dataset", "must not be empty")
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
