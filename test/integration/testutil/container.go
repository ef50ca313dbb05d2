// Package testutil starts the service emulators the integration suites run
// against. Containers are started once per package from TestMain and shared
// by every test in it.
package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ContainerConfig holds configuration for starting a container
type ContainerConfig struct {
	// Image is the container image to use (required)
	Image string

	// ExposedPorts is a list of ports to expose (e.g., "4443/tcp")
	ExposedPorts []string

	// Cmd is the command to run in the container
	Cmd []string

	// Env is a map of environment variables to set
	Env map[string]string

	// WaitStrategy decides when the container is ready
	WaitStrategy wait.Strategy

	// StartupTimeout bounds each start attempt (default: 180s)
	StartupTimeout time.Duration

	// MaxRetries is the number of start attempts (default: 3)
	MaxRetries int

	// RetryDelay is the base delay between attempts, multiplied by the attempt number (default: 1s)
	RetryDelay time.Duration

	// Name is a human-readable name for logging purposes
	Name string
}

func (c *ContainerConfig) applyDefaults() {
	if c.StartupTimeout == 0 {
		c.StartupTimeout = 180 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.Name == "" {
		c.Name = "shared-container"
	}
}

// SharedContainer is a started container plus its mapped ports
type SharedContainer struct {
	Container testcontainers.Container
	Host      string
	// Ports maps exposed port specs (e.g., "4443/tcp") to their mapped ports
	Ports map[string]string
	Name  string
}

// Endpoint returns scheme://host:port for the given port spec, or "" when the
// port was not exposed.
func (s *SharedContainer) Endpoint(scheme, portSpec string) string {
	port, ok := s.Ports[portSpec]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s://%s:%s", scheme, s.Host, port)
}

// Cleanup terminates the container, falling back to the container CLI
func (s *SharedContainer) Cleanup() {
	if s == nil || s.Container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	println(fmt.Sprintf("Cleaning up shared %s container...", s.Name))
	if err := s.Container.Terminate(ctx); err != nil {
		println(fmt.Sprintf("Warning: failed to terminate shared %s container: %v", s.Name, err))
		forceRemove(s.Container.GetContainerID())
	}
}

// RuntimeAvailable reports whether a container runtime can be reached
func RuntimeAvailable(ctx context.Context) error {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()
	_, err = provider.DaemonHost(ctx)
	return err
}

// StartSharedContainer starts a container with retries. The caller owns the
// result and must call Cleanup once its tests have run.
func StartSharedContainer(config ContainerConfig) (*SharedContainer, error) {
	config.applyDefaults()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        config.Image,
		ExposedPorts: config.ExposedPorts,
		Cmd:          config.Cmd,
		Env:          config.Env,
		WaitingFor:   config.WaitStrategy,
	}

	var (
		container testcontainers.Container
		err       error
	)
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		println(fmt.Sprintf("Starting shared %s container (attempt %d/%d)...", config.Name, attempt, config.MaxRetries))

		attemptCtx, cancel := context.WithTimeout(ctx, config.StartupTimeout)
		container, err = testcontainers.GenericContainer(attemptCtx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		cancel()
		if err == nil {
			break
		}

		println(fmt.Sprintf("Attempt %d failed: %v", attempt, err))
		// A created container whose wait strategy timed out still needs removing.
		if container != nil {
			terminateCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if termErr := container.Terminate(terminateCtx); termErr != nil {
				forceRemove(container.GetContainerID())
			}
			cancel()
		}
		if attempt < config.MaxRetries {
			time.Sleep(config.RetryDelay * time.Duration(attempt))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start shared %s container after %d attempts: %w", config.Name, config.MaxRetries, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get %s container host: %w", config.Name, err)
	}

	ports := make(map[string]string, len(config.ExposedPorts))
	for _, portSpec := range config.ExposedPorts {
		port, err := container.MappedPort(ctx, nat.Port(portSpec))
		if err != nil {
			_ = container.Terminate(ctx)
			return nil, fmt.Errorf("failed to get mapped port %s for %s container: %w", portSpec, config.Name, err)
		}
		ports[portSpec] = port.Port()
	}

	println(fmt.Sprintf("Shared %s container started (host: %s)", config.Name, host))
	return &SharedContainer{Container: container, Host: host, Ports: ports, Name: config.Name}, nil
}

// forceRemove removes a container with the docker or podman CLI
func forceRemove(containerID string) {
	if containerID == "" {
		return
	}
	for _, runtime := range []string{"docker", "podman"} {
		if err := exec.Command(runtime, "rm", "-f", containerID).Run(); err == nil {
			println(fmt.Sprintf("Force-removed container %s using %s", containerID, runtime))
			return
		}
	}
	println(fmt.Sprintf("Could not force-remove container %s, manual cleanup may be required", containerID))
}

// ForHTTPPort waits until path answers on portSpec
func ForHTTPPort(path, portSpec string, timeout time.Duration) wait.Strategy {
	return wait.ForAll(
		wait.ForListeningPort(nat.Port(portSpec)),
		wait.ForHTTP(path).WithPort(nat.Port(portSpec)),
	).WithDeadline(timeout)
}
