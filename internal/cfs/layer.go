// SPDX-License-Identifier: MPL-2.0

package cfs

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// LayerState describes whether a layer should be present in or absent from
// a configuration.
type LayerState string

const (
	// LayerStatePresent ensures the layer exists with the requested content.
	LayerStatePresent LayerState = "present"
	// LayerStateAbsent ensures any matching layer is removed.
	LayerStateAbsent LayerState = "absent"
)

// ParseLayerState validates a layer state string.
func ParseLayerState(s string) (LayerState, error) {
	switch LayerState(s) {
	case LayerStatePresent, LayerStateAbsent:
		return LayerState(s), nil
	}
	return "", fmt.Errorf("invalid layer state %q: must be %q or %q", s, LayerStatePresent, LayerStateAbsent)
}

// Layer is one layer of a CFS configuration: a playbook at a ref of a
// configuration management repo.
type Layer struct {
	// Name identifies the layer within a configuration. Optional; a default
	// is constructed from the other fields when empty.
	Name string
	// CloneURL is the git clone URL of the configuration repo.
	CloneURL string
	// Commit is the pinned commit hash. Mutually exclusive with Branch in
	// practice; CFS v2 requires a commit.
	Commit string
	// Branch is the git branch name.
	Branch string
	// Playbook is the playbook path within the repo. Empty means the CFS
	// internal default.
	Playbook string
}

// NewLayerFromCloneURL constructs a layer from an explicit clone URL.
func NewLayerFromCloneURL(cloneURL, name, playbook, commit, branch string) Layer {
	return Layer{
		Name:     name,
		CloneURL: cloneURL,
		Commit:   commit,
		Branch:   branch,
		Playbook: playbook,
	}
}

// RepoPath returns the path component of the clone URL, which identifies the
// repo independently of which gateway host the URL goes through.
func (l Layer) RepoPath() string {
	parsed, err := url.Parse(l.CloneURL)
	if err != nil {
		return l.CloneURL
	}
	return parsed.Path
}

// RepoShortName returns the repository name with the .git suffix removed.
func (l Layer) RepoShortName() string {
	return strings.TrimSuffix(path.Base(l.RepoPath()), ".git")
}

// EffectiveName returns the layer name, constructing one from the repo short
// name, playbook stem, and ref when no explicit name was given.
func (l Layer) EffectiveName() string {
	if l.Name != "" {
		return l.Name
	}

	parts := []string{l.RepoShortName()}
	if l.Playbook != "" {
		parts = append(parts, strings.TrimSuffix(path.Base(l.Playbook), path.Ext(l.Playbook)))
	}
	switch {
	case l.Commit != "":
		ref := l.Commit
		if len(ref) > 7 {
			ref = ref[:7]
		}
		parts = append(parts, ref)
	case l.Branch != "":
		parts = append(parts, l.Branch)
	}

	return strings.Join(parts, "-")
}

// matches reports whether two layers refer to the same configuration
// content source. Layers with explicit names match by name; otherwise a
// layer matches when it references the same repo path and playbook.
func (l Layer) matches(other Layer) bool {
	if l.Name != "" && other.Name != "" {
		return l.Name == other.Name
	}
	return l.RepoPath() == other.RepoPath() && l.Playbook == other.Playbook
}
