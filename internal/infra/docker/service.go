package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

type ServiceOptions struct {
	Name       string
	Image      string
	Entrypoint []string
	Cmd        []string
	// Ports maps a host port to a container TCP port.
	Ports map[int]int
}

type ServiceStatus struct {
	Exists  bool
	Running bool
	ID      string
}

// StartService starts a long running named container, publishing Ports on
// the loopback interface. An existing stopped container with the same name is
// started again.
func (c *Client) StartService(ctx context.Context, opts ServiceOptions) (string, error) {
	status, err := c.Status(ctx, opts.Name)
	if err != nil {
		return "", err
	}
	if status.Running {
		c.logger.With("name", opts.Name).Info("container already running")
		return status.ID, nil
	}
	if status.Exists {
		if err := c.cli.ContainerStart(ctx, status.ID, container.StartOptions{}); err != nil {
			return "", fmt.Errorf("failed to restart container %s: %w", opts.Name, err)
		}
		return status.ID, nil
	}

	exposed, bindings, err := portBindings(opts.Ports)
	if err != nil {
		return "", err
	}

	config := &container.Config{
		Image:        opts.Image,
		Entrypoint:   opts.Entrypoint,
		Cmd:          opts.Cmd,
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		PortBindings: bindings,
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}

	c.logger.With("name", opts.Name, "id", resp.ID).Info("container started")

	return resp.ID, nil
}

// StopService stops and removes the named container. A missing container is not an error.
func (c *Client) StopService(ctx context.Context, name string) error {
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}

	return nil
}

// Status reports whether the named container exists and runs.
func (c *Client) Status(ctx context.Context, name string) (ServiceStatus, error) {
	info, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ServiceStatus{}, nil
		}
		return ServiceStatus{}, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	running := info.State != nil && info.State.Running

	return ServiceStatus{Exists: true, Running: running, ID: info.ID}, nil
}

func portBindings(ports map[int]int) (nat.PortSet, nat.PortMap, error) {
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))

	for hostPort, containerPort := range ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(containerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d: %w", containerPort, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   "127.0.0.1",
			HostPort: strconv.Itoa(hostPort),
		})
	}

	return exposed, bindings, nil
}
