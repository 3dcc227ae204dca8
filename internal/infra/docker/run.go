package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/go-archive"
)

type (
	RunOptions struct {
		Image      string
		Cmd        []string
		Env        []string
		WorkDir    string
		User       string
		CopyIn     []CopyIn
		StreamLogs bool
		CaptureOut bool
	}

	// CopyIn copies the content of HostDir into ContainerDir before the
	// container starts. ContainerDir must exist, WorkDir always does.
	CopyIn struct {
		ContainerDir string
		HostDir      string
		// Include limits the archive to these entries of HostDir.
		Include []string
	}
)

// Run runs a Docker container to completion and removes it.
func (c *Client) Run(ctx context.Context, opts RunOptions) (string, error) {
	config := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Cmd,
		Env:        opts.Env,
		WorkingDir: opts.WorkDir,
		User:       opts.User,
	}

	resp, err := c.cli.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	containerID := resp.ID
	defer func() {
		_ = c.cli.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true})
	}()

	for _, in := range opts.CopyIn {
		if err := c.copyIn(ctx, containerID, in); err != nil {
			return "", err
		}
	}

	attachResp, err := c.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		if opts.StreamLogs {
			_, _ = stdcopy.StdCopy(io.MultiWriter(os.Stdout, &stdout), io.MultiWriter(os.Stderr, &stderr), attachResp.Reader)
			return
		}
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
	}()

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		<-copied
		if status.StatusCode != 0 {
			errorOutput := stdout.String() + stderr.String()
			if errorOutput != "" {
				return "", fmt.Errorf("container exited with code %d: %s", status.StatusCode, errorOutput)
			}
			return "", fmt.Errorf("container exited with code %d", status.StatusCode)
		}
	}

	if opts.CaptureOut {
		return stdout.String(), nil
	}

	return "", nil
}

func (c *Client) copyIn(ctx context.Context, containerID string, in CopyIn) error {
	content, err := archive.TarWithOptions(in.HostDir, &archive.TarOptions{IncludeFiles: in.Include})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", in.HostDir, err)
	}
	defer content.Close()

	if err := c.cli.CopyToContainer(ctx, containerID, in.ContainerDir, content, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s into container: %w", in.HostDir, err)
	}

	return nil
}
