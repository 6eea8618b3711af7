//go:build integration

// Package integration exercises delta distribution against a real
// registry:2 container using testcontainers.
//
// These tests require Docker. Run with:
//
//	go test -tags=integration ./integration/...
//
// Set SKIP_DOCKER_TESTS=1 to skip them in environments without Docker.
package integration
