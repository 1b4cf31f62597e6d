// Package githubauth resolves the token used to authenticate git operations
// and GitHub API calls against a configured repository. Most deployments
// configure a static personal access token; larger installations can
// instead configure a GitHub App, adapted from the teacher's
// githubapp.Config, whose installation token AppTokenSource mints lazily,
// caches, and serves directly as a CredentialProvider.
// TokenSourceCredentialProvider separately adapts any oauth2.TokenSource.
package githubauth

import (
	"context"

	"github.com/alecthomas/errors"
	"golang.org/x/oauth2"
)

// CredentialProvider resolves the current token to use for git/API calls
// against a repository. Implementations may cache and refresh internally.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider backed by a single configured PAT,
// spec.md §6's `githubToken?` configuration option.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// AppConfig configures GitHub App-based authentication, an alternative to a
// static PAT for deployments that prefer short-lived installation tokens.
type AppConfig struct {
	AppID          string `hcl:"app-id,optional" help:"GitHub App ID."`
	PrivateKeyPath string `hcl:"private-key-path,optional" help:"Path to the GitHub App private key (PEM format)."`
	InstallationID string `hcl:"installation-id,optional" help:"GitHub App installation ID for the target organization."`
}

func (c AppConfig) IsConfigured() bool {
	return c.AppID != "" && c.PrivateKeyPath != "" && c.InstallationID != ""
}

// TokenSourceCredentialProvider adapts an oauth2.TokenSource (e.g. one that
// mints and refreshes a GitHub App installation token) into a
// CredentialProvider.
type TokenSourceCredentialProvider struct {
	Source oauth2.TokenSource
}

func (p TokenSourceCredentialProvider) Token(context.Context) (string, error) {
	token, err := p.Source.Token()
	if err != nil {
		return "", errors.Wrap(err, "obtain oauth2 token")
	}
	return token.AccessToken, nil
}
