// Package authz provides Cedar-based authorization for the status API.
package authz

import "context"

//go:generate mockgen -destination=mocks/mock_authorizer.go -package=mocks -source=authorizer.go Authorizer

// Authorizer evaluates authorization decisions using Cedar policies.
type Authorizer interface {
	// Authorize checks if a principal holding the granted actions may
	// perform the action on the pipeline.
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// Request represents an authorization request.
type Request struct {
	// Subject is the token subject, recorded on the principal
	Subject string

	// GrantedActions are the actions granted by the caller's scopes
	GrantedActions []string

	// Action is the required action (read, run, admin)
	Action string

	// Pipeline identifies the run state record the coordinator owns
	Pipeline string
}

// Decision represents the result of an authorization check.
type Decision struct {
	Allowed bool

	// Reasons lists the policy IDs that contributed to the decision
	Reasons []string
}
