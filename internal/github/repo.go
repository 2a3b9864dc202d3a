package github

import (
	"errors"
	"regexp"
)

var ErrInvalidURL = errors.New("invalid github url")

var repoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// RepoInfo identifies a repository on github.com.
type RepoInfo struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// ParseRepoURL extracts owner and repo from the first github.com/<owner>/<repo>
// occurrence in raw. The captured segments are returned as-is; a trailing
// ".git" or query string stays part of Repo.
func ParseRepoURL(raw string) (RepoInfo, error) {
	m := repoPattern.FindStringSubmatch(raw)
	if m == nil {
		return RepoInfo{}, ErrInvalidURL
	}
	return RepoInfo{Owner: m[1], Repo: m[2]}, nil
}
