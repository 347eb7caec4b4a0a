// SPDX-License-Identifier: MPL-2.0

// Package vcs resolves git refs in the VCS configuration management repos.
//
// Access goes through the real git binary with GIT_ASKPASS pointed at the
// vcs-creds-helper program so the VCS password is never placed on a command
// line or in a URL, where it would be visible through /proc.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// credsHelper is the GIT_ASKPASS program shipped alongside the utility.
const credsHelper = "vcs-creds-helper"

// ErrRefNotFound indicates the requested ref does not exist in the remote.
var ErrRefNotFound = errors.New("ref not found in remote repository")

// CommandRunner runs a command and returns its stdout. Injectable for tests;
// the default implementation is execGit.
type CommandRunner func(ctx context.Context, extraEnv []string, name string, args ...string) ([]byte, error)

// Repo is a client for one remote VCS repository.
type Repo struct {
	// CloneURL is the repository clone URL as it should appear in CFS layers.
	CloneURL string
	// Username authenticates to the git server.
	Username string

	runner CommandRunner
}

// NewRepo creates a Repo for the given clone URL.
func NewRepo(cloneURL, username string) *Repo {
	return &Repo{
		CloneURL: cloneURL,
		Username: username,
		runner:   execGit,
	}
}

func execGit(ctx context.Context, extraEnv []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// authenticatedURL rebuilds the clone URL with the username in the
// authority component so git prompts through GIT_ASKPASS for the password.
func (r *Repo) authenticatedURL() (string, error) {
	parsed, err := url.Parse(r.CloneURL)
	if err != nil {
		return "", fmt.Errorf("invalid clone URL %q: %w", r.CloneURL, err)
	}

	parsed.Scheme = "https"
	parsed.User = url.User(r.Username)
	return parsed.String(), nil
}

// RemoteRefs returns a map from remote ref names to commit hashes.
func (r *Repo) RemoteRefs(ctx context.Context) (map[string]string, error) {
	remoteURL, err := r.authenticatedURL()
	if err != nil {
		return nil, err
	}

	out, err := r.runner(ctx, []string{"GIT_ASKPASS=" + credsHelper}, "git", "ls-remote", remoteURL)
	if err != nil {
		return nil, fmt.Errorf("error accessing VCS: %w", err)
	}

	return parseRemoteRefs(string(out)), nil
}

// parseRemoteRefs parses `git ls-remote` output. Each line has the form
// "<commit hash>\t<ref name>"; the returned map goes the other way, from
// ref name to commit hash.
func parseRemoteRefs(output string) map[string]string {
	refs := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		hash, ref, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		refs[ref] = hash
	}
	return refs
}

// CommitHashForBranch resolves a branch name to its commit hash.
// Returns ErrRefNotFound if the branch does not exist.
func (r *Repo) CommitHashForBranch(ctx context.Context, branch string) (string, error) {
	refs, err := r.RemoteRefs(ctx)
	if err != nil {
		return "", err
	}

	hash, ok := refs["refs/heads/"+branch]
	if !ok {
		return "", fmt.Errorf("branch %q in repository %q: %w", branch, r.CloneURL, ErrRefNotFound)
	}
	return hash, nil
}
