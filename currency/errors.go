package currency

import "fmt"

// UnsupportedCurrencyError is returned when a currency is unknown to this
// library or absent from the bundler's /info addresses.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency: %s", e.Currency)
}

// SigningError reports a missing, rejected or malformed signing credential.
type SigningError struct {
	Currency string
	Err      error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: signing failed: %v", e.Currency, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// ChainQueryError reports a failed chain provider call.
type ChainQueryError struct {
	Currency string
	Op       string
	Err      error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Currency, e.Op, e.Err)
}

func (e *ChainQueryError) Unwrap() error { return e.Err }

// NotFoundError is returned by GetTx when the chain has no record of a
// transaction.
type NotFoundError struct {
	Currency string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: transaction %s not found", e.Currency, e.ID)
}

// QueryError wraps err as a ChainQueryError unless it already carries a
// typed currency error.
func QueryError(name, op string, err error) error {
	switch err.(type) {
	case *ChainQueryError, *NotFoundError, *SigningError:
		return err
	}
	return &ChainQueryError{Currency: name, Op: op, Err: err}
}
