package kaltura

import (
	"errors"
	"fmt"
)

// Remote error codes the engine reacts to specifically.
const (
	// CodeCategoriesLocked is returned while the Kaltura backend holds
	// its taxonomy lock; the operation can succeed after a short wait.
	CodeCategoriesLocked = "CATEGORIES_LOCKED"
)

// ErrNotFound is returned by lookup operations matching zero objects.
var ErrNotFound = errors.New("kaltura: not found")

// APIError is a typed error returned by the Kaltura API with a
// machine-readable code.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kaltura api error %s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
