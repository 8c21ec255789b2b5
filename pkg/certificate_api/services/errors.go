package services

import (
	"fmt"
	"strings"
)

// Kind classifies an issuance failure. Store, render and publish failures
// are upstream failures; validation and template failures are not retried.
type Kind string

const (
	KindValidation Kind = "validation"
	KindTemplate   Kind = "template"
	KindStore      Kind = "store"
	KindRender     Kind = "render"
	KindPublish    Kind = "publish"
)

// IssuanceError is returned by IssuanceService.Issue for every failure.
type IssuanceError struct {
	Kind   Kind
	Op     string
	Fields []string // invalid request fields, only for KindValidation
	Err    error
}

func (e *IssuanceError) Error() string {
	if e.Kind == KindValidation {
		return fmt.Sprintf("invalid request: %s", strings.Join(e.Fields, ", "))
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed during %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s failed during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// IsUpstream reports whether a collaborator (store, renderer, storage) failed.
func (e *IssuanceError) IsUpstream() bool {
	switch e.Kind {
	case KindStore, KindRender, KindPublish:
		return true
	}
	return false
}

func upstream(kind Kind, op string, err error) *IssuanceError {
	return &IssuanceError{Kind: kind, Op: op, Err: err}
}
