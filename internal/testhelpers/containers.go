// Package testhelpers starts the backing services used by the container test
// suites (go test -tags container ./...).
//
// Containers are terminated through t.Cleanup. Docker must be reachable.
package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 2 * time.Minute

// StartPostgres runs postgres:16-alpine and returns a connection URL.
func StartPostgres(t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ridebot",
			"POSTGRES_PASSWORD": "ridebot",
			"POSTGRES_DB":       "ridebot",
		},
		// the entrypoint restarts the server once after init
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(startupTimeout),
	}
	return fmt.Sprintf("postgres://ridebot:ridebot@%s/ridebot?sslmode=disable", start(t, req))
}

// StartMongo runs a single mongod and returns its URI.
func StartMongo(t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(startupTimeout),
	}
	return "mongodb://" + start(t, req)
}

// StartRedis runs redis:7-alpine and returns its address.
func StartRedis(t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout),
	}
	return start(t, req)
}

// start runs req and returns host:port of its single exposed port.
func start(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("warning: failed to terminate %s: %v", req.Image, err)
		}
	})

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get %s endpoint: %v", req.Image, err)
	}
	return endpoint
}
