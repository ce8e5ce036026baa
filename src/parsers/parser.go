package parsers

import (
	"errors"
	"io"

	"github.com/gerenciause-netizen/smart-trader/src/models"
)

// Parser turns a broker export into normalized transactions.
type Parser interface {
	Parse(r io.Reader, opts models.ImportOptions) (*models.ImportResult, error)
}

// Validation errors surfaced by every parser. The batch is aborted on any of them.
var (
	ErrNoInput        = models.ErrImportNoInput
	ErrHeaderNotFound = models.ErrImportHeaderNotFound
	ErrNoValidRows    = models.ErrImportNoValidRows
)

// IsValidationError reports whether err should be shown to the user as a 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoInput) || errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrNoValidRows)
}
