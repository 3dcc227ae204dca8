package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortBindings(t *testing.T) {
	exposed, bindings, err := portBindings(map[int]int{18545: 8545})
	require.NoError(t, err)

	port := nat.Port("8545/tcp")
	assert.Contains(t, exposed, port)
	assert.Equal(t, []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "18545"}}, bindings[port])

	_, _, err = portBindings(map[int]int{1: 70000})
	require.Error(t, err)
}
