package gitfetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/errors"
	"github.com/google/go-github/v68/github"

	"github.com/sap/ord-directory-server/internal/logging"
)

// Metadata is the content metadata sidecar spec.md §3 describes, produced on
// a successful fetch.
type Metadata struct {
	CommitHash       string    `json:"commitHash"`
	DirectoryTreeSha string    `json:"directoryTreeSha,omitempty"`
	FetchTime        time.Time `json:"fetchTime"`
	Branch           string    `json:"branch"`
	Repository       string    `json:"repository"`
	TotalFiles       int       `json:"totalFiles"`
}

// Progress is called by Fetch to report coarse-grained progress; nil is
// accepted and means "no observer".
type Progress func(stage string)

// Options bundles the directories Fetch operates on. TargetDir is the
// destination of the clone/pull (C2's temp/); StagingDir is the scratch
// directory used to extract RootSubpath (C2's staging/).
type Options struct {
	RootSubpath string
	TargetDir   string
	StagingDir  string
	Progress    Progress
}

// Fetcher clones or pulls a branch of a remote repository. It shells out to
// the git binary, exactly as the teacher's gitclone package does, rather
// than embedding a pure-Go git implementation.
type Fetcher struct{}

func New() *Fetcher { return &Fetcher{} }

func (f *Fetcher) report(opts Options, stage string) {
	if opts.Progress != nil {
		opts.Progress(stage)
	}
}

// Fetch implements spec.md §4.1's algorithm: clone-or-pull, extract the
// configured sub-path, then resolve HEAD and count files.
func (f *Fetcher) Fetch(ctx context.Context, coords Coordinates, opts Options) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, classify(&Error{Kind: KindAborted, Err: ErrAborted})
	}

	gitDir := filepath.Join(opts.TargetDir, ".git")
	_, statErr := os.Stat(gitDir)
	hasGit := statErr == nil

	if !hasGit {
		f.report(opts, "cloning")
		if err := f.clone(ctx, coords, opts.TargetDir); err != nil {
			return Metadata{}, classify(err)
		}
	} else {
		f.report(opts, "pulling")
		if err := f.pull(ctx, coords, opts.TargetDir); err != nil {
			return Metadata{}, classify(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return Metadata{}, classify(&Error{Kind: KindAborted, Err: ErrAborted})
	}

	if opts.RootSubpath != "" && opts.RootSubpath != "." {
		f.report(opts, "extracting")
		if err := extractSubpath(opts.TargetDir, opts.StagingDir, opts.RootSubpath); err != nil {
			return Metadata{}, classify(errors.Wrap(err, "extract root subpath"))
		}
	}

	f.report(opts, "resolving")
	commitHash, err := f.resolveHead(ctx, opts.TargetDir)
	if err != nil {
		return Metadata{}, classify(err)
	}

	totalFiles, err := f.countFiles(ctx, opts.TargetDir, opts.RootSubpath)
	if err != nil {
		return Metadata{}, classify(err)
	}

	return Metadata{
		CommitHash: commitHash,
		FetchTime:  time.Now().UTC(),
		Branch:     coords.Branch,
		Repository: coords.Repository(),
		TotalFiles: totalFiles,
	}, nil
}

func (f *Fetcher) clone(ctx context.Context, coords Coordinates, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return errors.Wrap(err, "create target directory")
	}

	cloneURL := coords.CloneURL()
	// #nosec G204 - coords fields are operator-configured, not request input
	cmd, err := gitCommand(ctx, "", coords, "clone", "--branch", coords.Branch, "--single-branch", cloneURL, targetDir)
	if err != nil {
		return errors.Wrap(err, "build clone command")
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Errorf("git clone: %w: %s", err, string(output))
	}
	return nil
}

func (f *Fetcher) pull(ctx context.Context, coords Coordinates, targetDir string) error {
	cmd, err := gitCommand(ctx, targetDir, coords, "pull", "origin", coords.Branch)
	if err != nil {
		return errors.Wrap(err, "build pull command")
	}
	if output, pullErr := cmd.CombinedOutput(); pullErr != nil {
		logging.FromContext(ctx).WarnContext(ctx, "git pull failed, resetting to origin branch",
			"error", pullErr, "output", string(output))

		fetchCmd, ferr := gitCommand(ctx, targetDir, coords, "fetch", "origin", coords.Branch)
		if ferr != nil {
			return errors.Wrap(ferr, "build fetch command")
		}
		if out, ferr := fetchCmd.CombinedOutput(); ferr != nil {
			return errors.Errorf("git fetch: %w: %s", ferr, string(out))
		}

		resetCmd, rerr := gitCommand(ctx, targetDir, coords, "reset", "--hard", "origin/"+coords.Branch)
		if rerr != nil {
			return errors.Wrap(rerr, "build reset command")
		}
		if out, rerr := resetCmd.CombinedOutput(); rerr != nil {
			return errors.Errorf("git reset --hard: %w: %s", rerr, string(out))
		}

		checkoutCmd, cerr := gitCommand(ctx, targetDir, coords, "checkout", "origin/"+coords.Branch)
		if cerr != nil {
			return errors.Wrap(cerr, "build checkout command")
		}
		if out, cerr := checkoutCmd.CombinedOutput(); cerr != nil {
			return errors.Errorf("git checkout: %w: %s", cerr, string(out))
		}
	}
	return nil
}

func (f *Fetcher) resolveHead(ctx context.Context, targetDir string) (string, error) {
	cmd, err := gitCommand(ctx, targetDir, Coordinates{}, "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "build rev-parse command")
	}
	output, err := cmd.Output()
	if err != nil {
		return "", errors.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (f *Fetcher) countFiles(ctx context.Context, targetDir, subpath string) (int, error) {
	treePath := "."
	if subpath != "" {
		treePath = subpath
	}
	cmd, err := gitCommand(ctx, targetDir, Coordinates{}, "ls-tree", "-r", "--name-only", "HEAD", "--", treePath)
	if err == nil {
		if output, lsErr := cmd.Output(); lsErr == nil {
			lines := strings.Split(strings.TrimSpace(string(output)), "\n")
			n := 0
			for _, l := range lines {
				if strings.TrimSpace(l) != "" {
					n++
				}
			}
			return n, nil
		}
	}
	return countFiles(targetDir)
}

// GetLatestCommitSha inspects the remote head without touching the
// filesystem, spec.md §4.1's "Remote-only query". For github.com it uses the
// REST API (a single HTTPS round trip, no git subprocess); for GitHub
// Enterprise hosts whose API base differs from the git remote host, it falls
// back to `git ls-remote`.
func (f *Fetcher) GetLatestCommitSha(ctx context.Context, coords Coordinates) (string, error) {
	if coords.IsGitHubDotCom() {
		client := github.NewClient(nil)
		if coords.Token != "" {
			client = client.WithAuthToken(coords.Token)
		}
		branch, _, err := client.Repositories.GetBranch(ctx, coords.Owner, coords.Repo, coords.Branch, 3)
		if err != nil {
			return "", classify(errors.Wrap(err, "get branch via GitHub API"))
		}
		return branch.GetCommit().GetSHA(), nil
	}

	cmd, err := gitCommand(ctx, "", coords, "ls-remote", authenticatedURL(coords), "refs/heads/"+coords.Branch)
	if err != nil {
		return "", errors.Wrap(err, "build ls-remote command")
	}
	output, err := cmd.Output()
	if err != nil {
		return "", classify(errors.Errorf("git ls-remote: %w", err))
	}
	refs := parseGitRefs(output)
	sha, ok := refs["refs/heads/"+coords.Branch]
	if !ok {
		return "", classify(&Error{Kind: KindBranchNotFound, Err: errors.Errorf("could not find branch %q", coords.Branch)})
	}
	return sha, nil
}
