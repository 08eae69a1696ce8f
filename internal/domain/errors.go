package domain

import (
	"context"
	"errors"
	"net"
)

// Category groups failures for presentation. Each category has a fixed
// retry affordance.
type Category string

const (
	CategoryNoData     Category = "no_data"
	CategoryNetwork    Category = "network"
	CategoryValidation Category = "validation"
	CategoryMapInit    Category = "map_init"
	CategoryCSV        Category = "csv"
	CategoryAPI        Category = "api"
	CategoryGeneric    Category = "generic"
)

// Sentinel errors, one per category. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrNoData     = errors.New("no data available")
	ErrNetwork    = errors.New("network error")
	ErrValidation = errors.New("validation error")
	ErrMapInit    = errors.New("map initialization failed")
	ErrCSV        = errors.New("csv error")
	ErrAPI        = errors.New("api error")
)

// Retryable reports whether retrying can change the outcome.
func (c Category) Retryable() bool {
	switch c {
	case CategoryValidation:
		return false
	default:
		return true
	}
}

// Classify maps an error to its category. Unknown errors are generic.
func Classify(err error) Category {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoData):
		return CategoryNoData
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrMapInit):
		return CategoryMapInit
	case errors.Is(err, ErrCSV):
		return CategoryCSV
	case errors.Is(err, ErrAPI):
		return CategoryAPI
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return CategoryNetwork
	default:
		return CategoryGeneric
	}
}
