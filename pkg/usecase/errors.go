package usecase

import "github.com/m-mizutani/goerr/v2"

// ErrInvalidInput indicates a request failed validation. Handlers map it to
// a 400 response.
var ErrInvalidInput = goerr.New("invalid input")
