package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/xeleb/internal/dagger"
)

// Build and return directory of go binaries
func (x *Xeleb) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// cgo needs a C compiler per target architecture.
	compilers := map[string][]string{
		"amd64": {"gcc", "gcc"},
		"arm64": {"gcc-aarch64-linux-gnu", "aarch64-linux-gnu-gcc"},
	}

	outputs := dag.Directory()

	for _, goarch := range []string{"amd64", "arm64"} {
		path := fmt.Sprintf("linux/%s/", goarch)
		pkg, cc := compilers[goarch][0], compilers[goarch][1]

		build := x.goContainer().
			WithExec([]string{"apt-get", "install", "-y", pkg}).
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", goarch).
			WithEnvVariable("CC", cc).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/xeleb"}).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/xelebapi"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (x *Xeleb) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/xeleb-ai/xeleb/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/xeleb-ai/xeleb/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/xeleb-ai/xeleb/pkg/utils.Buildtime=%s'", buildtime),
	}

	return x.Build(ctx, strings.Join(ldflags, " "))
}
