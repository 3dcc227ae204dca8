package devnet

import (
	"context"
	"errors"
	"testing"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	pulled  []string
	started []docker.ServiceOptions
	stopped []string
	status  docker.ServiceStatus
	err     error
}

func (f *fakeDocker) EnsureImage(_ context.Context, imageName string) error {
	f.pulled = append(f.pulled, imageName)
	return f.err
}

func (f *fakeDocker) StartService(_ context.Context, opts docker.ServiceOptions) (string, error) {
	f.started = append(f.started, opts)
	return "container-id", nil
}

func (f *fakeDocker) StopService(_ context.Context, name string) error {
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeDocker) Status(_ context.Context, _ string) (docker.ServiceStatus, error) {
	return f.status, nil
}

func testConfig() configs.Devnet {
	return configs.Devnet{
		Image:         "ghcr.io/foundry-rs/foundry:latest",
		ContainerName: "evm-bridge-devnet",
		Port:          9545,
		ChainID:       31337,
	}
}

func TestStart(t *testing.T) {
	fake := &fakeDocker{}
	devnet := New(fake, testConfig())

	var waitedFor string
	devnet.waitReady = func(_ context.Context, url string, _ int) error {
		waitedFor = url
		return nil
	}

	status, err := devnet.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Status{Running: true, ContainerID: "container-id", URL: "http://127.0.0.1:9545", ChainID: 31337}, status)
	assert.Equal(t, "http://127.0.0.1:9545", waitedFor)
	assert.Equal(t, []string{"ghcr.io/foundry-rs/foundry:latest"}, fake.pulled)

	require.Len(t, fake.started, 1)
	started := fake.started[0]
	assert.Equal(t, "evm-bridge-devnet", started.Name)
	assert.Equal(t, []string{"anvil"}, started.Entrypoint)
	assert.Equal(t, []string{"--host", "0.0.0.0", "--port", "8545", "--chain-id", "31337"}, started.Cmd)
	assert.Equal(t, map[int]int{9545: 8545}, started.Ports)
}

func TestStartFailures(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		fake := &fakeDocker{}
		_, err := New(fake, configs.Devnet{Port: 70000}).Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "devnet.image is required")
		assert.Contains(t, err.Error(), "devnet.port 70000 is out of range")
		assert.Empty(t, fake.pulled)
	})

	t.Run("image pull", func(t *testing.T) {
		fake := &fakeDocker{err: errors.New("no network")}
		_, err := New(fake, testConfig()).Start(context.Background())
		require.Error(t, err)
		assert.Empty(t, fake.started)
	})

	t.Run("never ready", func(t *testing.T) {
		devnet := New(&fakeDocker{}, testConfig())
		devnet.waitReady = func(context.Context, string, int) error { return errors.New("timed out") }

		_, err := devnet.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not become ready")
	})
}

func TestStopAndStatus(t *testing.T) {
	fake := &fakeDocker{}
	devnet := New(fake, testConfig())

	require.NoError(t, devnet.Stop(context.Background()))
	assert.Equal(t, []string{"evm-bridge-devnet"}, fake.stopped)

	status, err := devnet.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)

	fake.status = docker.ServiceStatus{Exists: true, Running: true, ID: "abc"}
	status, err = devnet.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{Running: true, ContainerID: "abc", URL: "http://127.0.0.1:9545", ChainID: 31337}, status)
}
