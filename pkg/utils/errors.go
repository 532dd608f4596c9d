package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError represents a custom application error
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *CustomError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Common error constructors
func NewBadRequestError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

func NewInternalServerError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: message,
	}
}

func NewNotFoundError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusNotFound,
		Message: message,
	}
}

func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

// NewExpansionError is returned when no keywords could be produced for a query
func NewExpansionError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadGateway,
		Message: "Query expansion failed",
		Detail:  detail,
	}
}

// ErrorKind classifies a pipeline failure by how far it propagates
type ErrorKind string

const (
	// KindUpstream is a platform API transport or quota failure. Fatal to one keyword.
	KindUpstream ErrorKind = "upstream"
	// KindLoadTimeout is a page navigation that did not finish in time
	KindLoadTimeout ErrorKind = "load_timeout"
	// KindExtraction is a scraping or parsing failure
	KindExtraction ErrorKind = "extraction"
	// KindClassification is a failed or malformed model call
	KindClassification ErrorKind = "classification"
)

// PipelineError is a typed failure raised inside a discovery run
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewUpstreamError(op string, err error) error {
	return &PipelineError{Kind: KindUpstream, Op: op, Err: err}
}

func NewLoadTimeout(op string, err error) error {
	return &PipelineError{Kind: KindLoadTimeout, Op: op, Err: err}
}

func NewExtractionFailure(op string, err error) error {
	return &PipelineError{Kind: KindExtraction, Op: op, Err: err}
}

func NewClassificationFailure(op string, err error) error {
	return &PipelineError{Kind: KindClassification, Op: op, Err: err}
}

// IsKind reports whether any error in err's chain is a PipelineError of kind
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
