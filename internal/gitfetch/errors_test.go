package gitfetch //nolint:testpackage // white-box testing required for unexported classify()

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want Kind
	}{
		{"repository not found", errors.New("remote: 404"), KindRepositoryNotFound},
		{"branch not found (could not find)", errors.New("fatal: could not find remote branch release"), KindBranchNotFound},
		{"branch not found (remote branch)", errors.New("fatal: remote branch xyz not found in upstream origin"), KindBranchNotFound},
		{"dns failure", errors.New("ssh: Could not resolve hostname ENOTFOUND"), KindNetwork},
		{"network unreachable", errors.New("dial tcp: network is unreachable"), KindNetwork},
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork},
		{"disk space", errors.New("write error: ENOSPC"), KindDiskSpace},
		{"no space left", errors.New("no space left on device"), KindDiskSpace},
		{"memory", errors.New("fatal: Out of memory, cannot allocate memory"), KindMemory},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classify(tc.in)
			var gitErr *Error
			assert.True(t, errors.As(classified, &gitErr))
			assert.Equal(t, tc.want, gitErr.Kind)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Zero(t, classify(nil))
}

func TestClassify_UnrecognizedPassesThroughUnwrapped(t *testing.T) {
	original := errors.New("something else entirely")
	assert.Equal(t, original, classify(original))
}

func TestClassify_PassesThroughAlreadyTyped(t *testing.T) {
	original := &Error{Kind: KindAborted, Err: ErrAborted}
	assert.Equal(t, original, classify(original))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "repository-not-found", KindRepositoryNotFound.String())
	assert.Equal(t, "branch-not-found", KindBranchNotFound.String())
	assert.Equal(t, "disk-space", KindDiskSpace.String())
	assert.Equal(t, "memory", KindMemory.String())
	assert.Equal(t, "aborted", KindAborted.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: KindNetwork, Err: inner}
	assert.Equal(t, "network: boom", err.Error())
	assert.Equal(t, inner, err.Unwrap())
}
