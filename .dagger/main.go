// Xeleb CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/xeleb/internal/dagger"
)

// Xeleb is the main module for the xeleb CI/CD pipeline
type Xeleb struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Xeleb CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".xeleb", "dataset"]
	source *dagger.Directory,
) *Xeleb {
	return &Xeleb{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// It is the shared foundation for tests, builds, and linting. CGO is
// required by the sqlite profile store and sqlite-vec knowledge store.
func (x *Xeleb) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", x.Source)
}

// Test runs the xeleb unit tests via "go test"
func (x *Xeleb) Test(ctx context.Context) (string, error) {
	return x.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestServices runs the unit tests with MongoDB, Redis and Qdrant bound as
// services so the connection URIs of a real deployment resolve.
func (x *Xeleb) TestServices(ctx context.Context) (string, error) {
	mongo := dag.Container().
		From("mongo:7").
		WithExposedPort(27017).
		AsService()

	redis := dag.Container().
		From("redis:7-alpine").
		WithExposedPort(6379).
		AsService()

	qdrant := dag.Container().
		From("qdrant/qdrant:v1.12.4").
		WithExposedPort(6334).
		AsService()

	return x.goContainer().
		WithServiceBinding("mongo", mongo).
		WithServiceBinding("redis", redis).
		WithServiceBinding("qdrant", qdrant).
		WithEnvVariable("MONGODB_URI", "mongodb://mongo:27017").
		WithEnvVariable("XELEB_VECTOR_STORE_TARGET", "qdrant:6334").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
