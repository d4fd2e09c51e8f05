package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "clinicore"
	pgPassword = "clinicore"
	pgDatabase = "clinicore_test"

	startupTimeout = 30 * time.Second
)

// startPostgresContainer runs a throwaway postgres container via the Docker
// CLI and returns its connection string plus a teardown function. The host
// port is chosen by Docker and discovered afterwards, so parallel test runs
// never race for the same port.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	name := fmt.Sprintf("clinicore-it-%d-%d", os.Getpid(), time.Now().UnixNano()%1_000_000)

	out, err := exec.CommandContext(ctx, "docker", "run",
		"--name", name,
		"-d",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w\noutput: %s", err, out)
	}
	containerID := strings.TrimSpace(string(out))

	teardown := func() {
		exec.Command("docker", "rm", "-f", containerID).Run()
	}

	hostAddr, err := mappedPort(ctx, containerID)
	if err != nil {
		teardown()
		return "", nil, err
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		pgUser, pgPassword, hostAddr, pgDatabase)
	if err := waitForPostgres(ctx, dsn, startupTimeout); err != nil {
		teardown()
		return "", nil, err
	}
	return dsn, teardown, nil
}

// mappedPort asks Docker which host address it bound the container's
// postgres port to.
func mappedPort(ctx context.Context, containerID string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", containerID, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	addr, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if addr == "" {
		return "", fmt.Errorf("container %s has no host mapping for 5432/tcp", containerID)
	}
	return strings.TrimSpace(addr), nil
}

// waitForPostgres polls until the server accepts connections and answers a
// ping, or gives up after timeout.
func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-waitCtx.Done():
			if lastErr != nil {
				return fmt.Errorf("postgres not ready after %v: %w", timeout, lastErr)
			}
			return fmt.Errorf("postgres not ready after %v: %w", timeout, waitCtx.Err())
		case <-ticker.C:
			if lastErr = pingOnce(waitCtx, dsn); lastErr == nil {
				return nil
			}
		}
	}
}

func pingOnce(ctx context.Context, dsn string) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pool.Ping(pingCtx)
}
