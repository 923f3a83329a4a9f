package main

import (
	"context"
	"fmt"

	"dagger/xeleb/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the common GolangcilintOpts used by both CheckLint and FixLint.
// It layers golangci-lint on top of goContainer() so the sqlite dev headers,
// CGO, and Go caches are already in place.
func (x *Xeleb) lintOpts() dagger.GolangcilintOpts {
	base := x.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  x.Source.File(".golangci.yml"),
	}
}

// CheckLint runs golangci-lint against the xeleb source code without applying fixes.
func (x *Xeleb) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(x.Source, x.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the xeleb source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (x *Xeleb) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(x.Source, x.lintOpts()).Lint()
}
