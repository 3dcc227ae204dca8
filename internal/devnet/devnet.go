// Package devnet runs a disposable anvil chain in docker for local deployments.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/deployer"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	"github.com/compose-network/evm-bridge/internal/logger"
)

const (
	anvilPort         = 8545
	readinessAttempts = 30
)

type (
	containerService interface {
		EnsureImage(ctx context.Context, imageName string) error
		StartService(ctx context.Context, opts docker.ServiceOptions) (string, error)
		StopService(ctx context.Context, name string) error
		Status(ctx context.Context, name string) (docker.ServiceStatus, error)
	}

	Status struct {
		Running     bool
		ContainerID string
		URL         string
		ChainID     uint64
	}

	Devnet struct {
		docker    containerService
		cfg       configs.Devnet
		waitReady func(ctx context.Context, url string, attempts int) error
		logger    *slog.Logger
	}
)

func New(docker containerService, cfg configs.Devnet) *Devnet {
	return &Devnet{
		docker:    docker,
		cfg:       cfg,
		waitReady: deployer.WaitForRPC,
		logger:    logger.Named("devnet"),
	}
}

func (d *Devnet) validate() error {
	var errs []error

	if d.cfg.Image == "" {
		errs = append(errs, errors.New("devnet.image is required"))
	}
	if d.cfg.ContainerName == "" {
		errs = append(errs, errors.New("devnet.container-name is required"))
	}
	if d.cfg.Port <= 0 || d.cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("devnet.port %d is out of range", d.cfg.Port))
	}
	if d.cfg.ChainID == 0 {
		errs = append(errs, errors.New("devnet.chain-id is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("devnet configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// URL is the host side RPC endpoint of the devnet.
func (d *Devnet) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.cfg.Port)
}

// Start runs the anvil container, or reuses a running one, and waits for its RPC.
func (d *Devnet) Start(ctx context.Context) (Status, error) {
	if err := d.validate(); err != nil {
		return Status{}, err
	}

	if err := d.docker.EnsureImage(ctx, d.cfg.Image); err != nil {
		return Status{}, err
	}

	d.logger.With("image", d.cfg.Image, "port", d.cfg.Port, "chain_id", d.cfg.ChainID).Info("starting devnet")
	id, err := d.docker.StartService(ctx, docker.ServiceOptions{
		Name:       d.cfg.ContainerName,
		Image:      d.cfg.Image,
		Entrypoint: []string{"anvil"},
		Cmd:        anvilArgs(d.cfg),
		Ports:      map[int]int{d.cfg.Port: anvilPort},
	})
	if err != nil {
		return Status{}, fmt.Errorf("failed to start devnet: %w", err)
	}

	if err := d.waitReady(ctx, d.URL(), readinessAttempts); err != nil {
		return Status{}, fmt.Errorf("devnet did not become ready: %w", err)
	}

	d.logger.With("url", d.URL()).Info("devnet is ready")

	return Status{Running: true, ContainerID: id, URL: d.URL(), ChainID: d.cfg.ChainID}, nil
}

func (d *Devnet) Stop(ctx context.Context) error {
	if err := d.docker.StopService(ctx, d.cfg.ContainerName); err != nil {
		return fmt.Errorf("failed to stop devnet: %w", err)
	}

	d.logger.With("name", d.cfg.ContainerName).Info("devnet stopped")

	return nil
}

func (d *Devnet) Status(ctx context.Context) (Status, error) {
	status, err := d.docker.Status(ctx, d.cfg.ContainerName)
	if err != nil {
		return Status{}, err
	}

	result := Status{Running: status.Running, ContainerID: status.ID}
	if status.Running {
		result.URL = d.URL()
		result.ChainID = d.cfg.ChainID
	}

	return result, nil
}

func anvilArgs(cfg configs.Devnet) []string {
	return []string{
		"--host", "0.0.0.0",
		"--port", strconv.Itoa(anvilPort),
		"--chain-id", strconv.FormatUint(cfg.ChainID, 10),
	}
}
