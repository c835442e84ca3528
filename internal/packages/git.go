package packages

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/projgen/internal/config"
)

func cloneInto(ctx context.Context, pkg config.RemotePackage, dir string) error {
	opts := &git.CloneOptions{URL: pkg.URL}
	if pkg.Ref != "" {
		opts.ReferenceName = refName(pkg.Ref)
		opts.SingleBranch = true
	}
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}

// refName accepts a full reference, a tag written as tags/<name> or a branch name.
func refName(ref string) plumbing.ReferenceName {
	switch {
	case strings.HasPrefix(ref, "refs/"):
		return plumbing.ReferenceName(ref)
	case strings.HasPrefix(ref, "tags/"):
		return plumbing.NewTagReferenceName(strings.TrimPrefix(ref, "tags/"))
	default:
		return plumbing.NewBranchReferenceName(ref)
	}
}

func isPermanentGitError(err error) bool {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, context.Canceled):
		return true
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "couldn't find remote ref") || strings.Contains(l, "reference not found")
}
