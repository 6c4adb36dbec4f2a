package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Call-time and startup failures shared by every node in the mesh.
var (
	// ErrServiceNotFound is returned when no node registered the requested service.
	ErrServiceNotFound = errors.New("service not found")

	// ErrActionNotFound is returned when the service exists but does not define the action.
	ErrActionNotFound = errors.New("action not found")

	// ErrServiceUnavailable is returned when the service is registered but not ready.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDuplicateService is returned when a service name is already registered mesh-wide.
	ErrDuplicateService = errors.New("duplicate service")

	// ErrCyclicDependency is returned when a registration would close a dependency cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrRemoteTimeout is returned when a call gets no reply before its deadline.
	ErrRemoteTimeout = errors.New("remote call timed out")

	// ErrUnreachable is returned by a Transport when the target node has no route.
	ErrUnreachable = errors.New("node unreachable")

	// ErrDependencyFailed marks a service that can never become ready because a dependency failed.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrNodeStopped is returned for calls issued through, or pending on, a stopped node.
	ErrNodeStopped = errors.New("node stopped")

	// ErrNotFound is returned by storage when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidParams is returned when an action parameter bag cannot be decoded.
	ErrInvalidParams = errors.New("invalid params")
)

// Wire codes carried by error Messages.
const (
	CodeNotFound           = "not_found"
	CodeInvalidParams      = "invalid_params"
	CodeServiceNotFound    = "service_not_found"
	CodeActionNotFound     = "action_not_found"
	CodeServiceUnavailable = "service_unavailable"
	CodeRemoteTimeout      = "remote_timeout"
	CodeUnreachable        = "unreachable"
	CodeDependencyFailed   = "dependency_failed"
	CodeNodeStopped        = "node_stopped"
	CodeDuplicateService   = "duplicate_service"
	CodeCyclicDependency   = "cyclic_dependency"
	CodeInternal           = "internal"
)

// codeTable is ordered: the first sentinel found in an error chain wins.
var codeTable = []struct {
	code string
	err  error
}{
	{CodeNotFound, ErrNotFound},
	{CodeInvalidParams, ErrInvalidParams},
	{CodeServiceNotFound, ErrServiceNotFound},
	{CodeActionNotFound, ErrActionNotFound},
	{CodeServiceUnavailable, ErrServiceUnavailable},
	{CodeRemoteTimeout, ErrRemoteTimeout},
	{CodeRemoteTimeout, context.DeadlineExceeded},
	{CodeUnreachable, ErrUnreachable},
	{CodeDependencyFailed, ErrDependencyFailed},
	{CodeNodeStopped, ErrNodeStopped},
	{CodeDuplicateService, ErrDuplicateService},
	{CodeCyclicDependency, ErrCyclicDependency},
}

// Code maps an error chain to its stable wire code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel error for a wire code, or nil if the code is unknown.
func ErrorForCode(code string) error {
	for _, entry := range codeTable {
		if entry.code == code {
			return entry.err
		}
	}
	return nil
}

// RemoteError is a failure reported by another node through an error Message.
// It unwraps to the sentinel matching its code so errors.Is keeps working across hops.
type RemoteError struct {
	NodeID  string `json:"node_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error from %s: %s", e.NodeID, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrorForCode(e.Code)
}

// LocalError wraps the failure of an action handler invoked on the caller's own node.
type LocalError struct {
	Service string
	Action  string
	Cause   error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Action, e.Cause)
}

func (e *LocalError) Unwrap() error {
	return e.Cause
}

// CycleError names the services forming a dependency cycle, first service repeated last.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
