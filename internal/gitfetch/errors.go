// Package gitfetch clones and pulls a branch of a remote git repository into
// a target directory, extracting a sub-path as the working root. It is the
// only component that shells out to the git binary.
package gitfetch

import (
	"errors"
	"strings"
)

// Kind classifies a fetch failure so callers (the update scheduler) can
// decide whether it is worth recording as a transient remote failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindRepositoryNotFound
	KindBranchNotFound
	KindDiskSpace
	KindMemory
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRepositoryNotFound:
		return "repository-not-found"
	case KindBranchNotFound:
		return "branch-not-found"
	case KindDiskSpace:
		return "disk-space"
	case KindMemory:
		return "memory"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error wraps a raw git/filesystem failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ErrAborted is returned (wrapped in an *Error) when the cancellation handle
// fires before a fetch completes.
var ErrAborted = errors.New("fetch aborted")

// classify wraps a raw error into a typed Error at the edge, by substring of
// the underlying message or OS error code, exactly as spec.md §4.8
// prescribes. Errors that are already typed pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "404"):
		return &Error{Kind: KindRepositoryNotFound, Err: err}
	case strings.Contains(msg, "could not find") && strings.Contains(msg, "branch"):
		return &Error{Kind: KindBranchNotFound, Err: err}
	case strings.Contains(msg, "remote branch") && strings.Contains(msg, "not found"):
		return &Error{Kind: KindBranchNotFound, Err: err}
	case strings.Contains(msg, "enotfound"), strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "could not resolve host"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no route to host"):
		return &Error{Kind: KindNetwork, Err: err}
	case strings.Contains(msg, "enospc"), strings.Contains(msg, "no space left on device"):
		return &Error{Kind: KindDiskSpace, Err: err}
	case strings.Contains(msg, "enomem"), strings.Contains(msg, "cannot allocate memory"):
		return &Error{Kind: KindMemory, Err: err}
	default:
		return err
	}
}
