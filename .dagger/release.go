package main

import (
	"context"
	"fmt"
	"path"

	"dagger/xeleb/internal/dagger"
)

// bucketCreds addresses an S3 compatible bucket.
type bucketCreds struct {
	endpoint        *dagger.Secret
	bucket          *dagger.Secret
	accessKeyId     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// upload syncs artifacts into the bucket under prefix.
func (x *Xeleb) upload(
	ctx context.Context,
	creds bucketCreds,
	artifacts *dagger.Directory,
	prefix string,
) error {
	bucketName, err := creds.bucket.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}

	endpointUrl, err := creds.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	destination := fmt.Sprintf("s3://%s", path.Join(bucketName, prefix))

	_, err = dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", creds.accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", creds.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{
			"aws", "s3", "sync", ".",
			destination,
			"--endpoint-url", endpointUrl,
		}).
		Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to upload artifacts to %s: %w", prefix, err)
	}

	return nil
}

// withChecksums adds a SHA256SUMS manifest covering every binary.
func withChecksums(artifacts *dagger.Directory) *dagger.Directory {
	sums := dag.Container().
		From("debian:bookworm-slim").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{"sh", "-c", "find linux -type f | sort | xargs sha256sum > SHA256SUMS"}).
		File("/artifacts/SHA256SUMS")

	return artifacts.WithFile("SHA256SUMS", sums)
}

// ApiImage packages the xelebapi server for one architecture. The image
// listens on the default API port and reads its config from /data/.xeleb.
func (x *Xeleb) ApiImage(
	ctx context.Context,

	// Version string embedded in the binary
	// +optional
	// +default="dev"
	version string,

	// Git commit SHA embedded in the binary
	// +optional
	// +default="unknown"
	commit string,

	// Target architecture (amd64 or arm64)
	// +optional
	// +default="amd64"
	arch string,
) *dagger.Container {
	binary := x.BuildRelease(ctx, version, commit).File(fmt.Sprintf("linux/%s/xelebapi", arch))

	return dag.Container(dagger.ContainerOpts{Platform: dagger.Platform("linux/" + arch)}).
		From("debian:bookworm-slim").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "ca-certificates", "libsqlite3-0"}).
		WithFile("/usr/local/bin/xelebapi", binary).
		WithWorkdir("/data").
		WithExposedPort(7888).
		WithEntrypoint([]string{"/usr/local/bin/xelebapi"})
}

// PublishApiImage pushes the multi-arch xelebapi image and returns its
// digest reference.
func (x *Xeleb) PublishApiImage(
	ctx context.Context,

	// Image reference (e.g., "ghcr.io/xeleb-ai/xelebapi:v1.0.0")
	address string,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Registry username
	username string,

	// Registry password or token
	password *dagger.Secret,
) (string, error) {
	variants := []*dagger.Container{
		x.ApiImage(ctx, version, commit, "amd64"),
		x.ApiImage(ctx, version, commit, "arm64"),
	}

	return dag.Container().
		WithRegistryAuth(address, username, password).
		Publish(ctx, address, dagger.ContainerPublishOpts{PlatformVariants: variants})
}

// ReleaseLatest builds versioned release binaries with checksums and uploads
// them under the version and under "latest".
func (x *Xeleb) ReleaseLatest(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucket *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	creds := bucketCreds{
		endpoint:        endpoint,
		bucket:          bucket,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}
	artifacts := withChecksums(x.BuildRelease(ctx, version, commit))

	for _, prefix := range []string{version, "latest"} {
		if err := x.upload(ctx, creds, artifacts, prefix); err != nil {
			return artifacts, err
		}
	}

	return artifacts, nil
}

// Nightly builds and uploads nightly artifacts
func (x *Xeleb) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucket *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	creds := bucketCreds{
		endpoint:        endpoint,
		bucket:          bucket,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}
	artifacts := withChecksums(x.BuildRelease(ctx, "nightly", commit))

	return artifacts, x.upload(ctx, creds, artifacts, "nightly")
}
