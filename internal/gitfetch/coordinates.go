package gitfetch

import "fmt"

// Coordinates identifies the remote repository and branch to synchronize,
// spec.md §4.1's `{apiUrl, owner, repo, branch, token?}`.
type Coordinates struct {
	APIURL string
	Owner  string
	Repo   string
	Branch string
	Token  string
}

// CloneURL is the HTTPS clone URL derived from the coordinates. APIURL is
// only used to distinguish GitHub.com from a GitHub Enterprise host; the
// clone itself always goes over the host's normal git remote, not the API.
func (c Coordinates) CloneURL() string {
	host := "github.com"
	if c.APIURL != "" {
		if h := enterpriseHost(c.APIURL); h != "" {
			host = h
		}
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, c.Owner, c.Repo)
}

func (c Coordinates) Repository() string {
	return c.Owner + "/" + c.Repo
}

// IsGitHubDotCom reports whether APIURL points at the public GitHub REST API,
// as opposed to a GitHub Enterprise Server instance.
func (c Coordinates) IsGitHubDotCom() bool {
	return c.APIURL == "" || c.APIURL == "https://api.github.com" || c.APIURL == "https://api.github.com/"
}

func enterpriseHost(apiURL string) string {
	// GitHub Enterprise Server API URLs look like https://ghe.example.com/api/v3;
	// the git remote host is the same host without the /api/v3 suffix.
	const suffix = "/api/v3"
	u := apiURL
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	if len(u) > len(suffix) && u[len(u)-len(suffix):] == suffix {
		u = u[:len(u)-len(suffix)]
	}
	if idx := indexAfterScheme(u); idx >= 0 {
		return u[idx:]
	}
	return ""
}

func indexAfterScheme(s string) int {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return i + 3
		}
	}
	return -1
}
