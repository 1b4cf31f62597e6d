package gitfetch

import (
	"bufio"
	"context"
	"net/url"
	"os/exec"
	"strings"

	"github.com/alecthomas/errors"
)

// gitCommand builds a git invocation against repoDir, injecting basic-auth
// token credentials into the remote URL when the host looks like GitHub.
// Mirrors the teacher's gitclone/command.go technique of rewriting the URL
// in the final argument list plus disabling any url.insteadOf rewrite that
// would otherwise bypass the injected credentials.
func gitCommand(ctx context.Context, repoDir string, coords Coordinates, args ...string) (*exec.Cmd, error) {
	var allArgs []string

	if coords.Token != "" {
		configArgs, err := getInsteadOfDisableArgsForURL(ctx, coords.CloneURL())
		if err != nil {
			return nil, errors.Wrap(err, "get insteadOf disable args")
		}
		allArgs = append(allArgs, configArgs...)
	}

	if repoDir != "" {
		allArgs = append(allArgs, "-C", repoDir)
	}
	allArgs = append(allArgs, args...)

	for i, arg := range allArgs {
		if arg == coords.CloneURL() && coords.Token != "" {
			allArgs[i] = authenticatedURL(coords)
		}
	}

	return exec.CommandContext(ctx, "git", allArgs...), nil
}

// authenticatedURL rewrites a GitHub clone URL to carry token-as-basic-auth
// credentials: username is the token itself, password is the literal string
// "x-oauth-basic", per spec.md §4.1 step 1.
func authenticatedURL(coords Coordinates) string {
	raw := coords.CloneURL()
	if coords.Token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = url.UserPassword(coords.Token, "x-oauth-basic")
	return u.String()
}

func getInsteadOfDisableArgsForURL(ctx context.Context, targetURL string) ([]string, error) {
	if targetURL == "" {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, "git", "config", "--get-regexp", `^url\..*\.(insteadof|pushinsteadof)$`)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, nil //nolint:nilerr // no matching config is not an error
	}

	var args []string
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		configKey, pattern := parts[0], parts[1]
		if strings.HasPrefix(targetURL, pattern) {
			args = append(args, "-c", configKey+"=")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan insteadOf output")
	}
	return args, nil
}

// parseGitRefs parses `git ls-remote`/`for-each-ref` output into ref -> sha.
func parseGitRefs(output []byte) map[string]string {
	refs := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) >= 2 {
			refs[parts[1]] = parts[0]
		}
	}
	return refs
}
