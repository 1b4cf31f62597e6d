// Package config loads the HCL configuration that drives an orddirectoryd
// deployment and derives the environment-variable overlay the teacher's
// own config package applies before unmarshalling.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/alecthomas/errors"

	"github.com/sap/ord-directory-server/internal/githubauth"
	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/metrics"
	"github.com/sap/ord-directory-server/internal/ordconfig"
)

// SourceType selects where ORD content is sourced from, spec.md §6's
// `sourceType ∈ {local, github}`.
type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceGitHub SourceType = "github"
)

// Config is the full configuration surface of spec.md §6, plus the ambient
// bind address, logging, metrics, and GitHub App blocks a deployment needs.
type Config struct {
	Bind string `hcl:"bind,optional" default:"127.0.0.1:8080" help:"Bind address for the HTTP server."`

	BaseURL               string                 `hcl:"base-url,optional" help:"Base URL injected into ORD configuration and describedSystemInstance entries."`
	SourceType            SourceType             `hcl:"source-type,optional" default:"local" help:"Content source: local or github."`
	Directory             string                 `hcl:"directory,optional" help:"Local directory to serve ORD documents from (source-type=local)."`
	GithubRepository      string                 `hcl:"github-repository,optional" help:"owner/repo of the content repository (source-type=github)."`
	GithubBranch          string                 `hcl:"github-branch,optional" default:"main" help:"Branch to synchronize (source-type=github)."`
	GithubAPIURL          string                 `hcl:"github-api-url,optional" default:"https://api.github.com" help:"GitHub REST API base URL; differs for GitHub Enterprise."`
	GithubToken           string                 `hcl:"github-token,optional" help:"Personal access token for the content repository (source-type=github)."`
	DocumentsSubdirectory string                 `hcl:"documents-subdirectory,optional" default:"documents" help:"Subpath under the working root that holds ORD documents."`
	DataRoot              string                 `hcl:"data-root,optional" default:"./data" help:"Root directory for the current/temp/staging workspace (source-type=github)."`
	UpdateDelay           int                    `hcl:"update-delay,optional" default:"5" help:"Cooldown window in seconds between webhook-driven updates."`
	ReadinessTimeout      time.Duration          `hcl:"readiness-timeout,optional" default:"5m" help:"Maximum time a gated request waits for an in-flight update."`
	WebhookSecret         string                 `hcl:"webhook-secret,optional" help:"Shared secret validating the GitHub webhook signature, HMAC-SHA256 over the raw body."`
	AuthMethods           []ordconfig.AuthMethod `hcl:"auth-methods,optional" help:"Authentication methods exposed via ORD accessStrategies: open, basic, mtls, cf-mtls."`

	LoggingConfig   logging.Config       `hcl:"log,block"`
	MetricsConfig   metrics.Config       `hcl:"metrics,block"`
	GithubAppConfig githubauth.AppConfig `hcl:"github-app,block,optional"`
}

// Validate enforces the startup-only validation spec.md §7 calls for: bad
// configuration is fatal before the server starts serving.
func (c Config) Validate() error {
	switch c.SourceType {
	case SourceLocal:
		if c.Directory == "" {
			return errors.Errorf("directory is required when source-type is %q", SourceLocal)
		}
	case SourceGitHub:
		if c.GithubRepository == "" {
			return errors.Errorf("github-repository is required when source-type is %q", SourceGitHub)
		}
		if c.GithubBranch == "" {
			return errors.Errorf("github-branch is required when source-type is %q", SourceGitHub)
		}
	default:
		return errors.Errorf("unrecognized source-type %q", c.SourceType)
	}

	if len(c.AuthMethods) == 0 {
		return errors.Errorf("at least one auth method must be configured")
	}
	return errors.Wrap(ordconfig.ValidateAuthMethods(c.AuthMethods), "validate auth-methods")
}

// ParseEnvars returns a map of all environment variables.
func ParseEnvars() map[string]string {
	envars := make(map[string]string)
	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			envars[key] = value
		}
	}
	return envars
}
