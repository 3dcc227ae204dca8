// Package verify publishes the sources of deployed contracts to block explorers.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/deployer"
	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

const (
	ChainIDMainnet = 1
	ChainIDSepolia = 11155111
)

// builtinAPIURLs are the chains explorers support without a chain descriptor.
var builtinAPIURLs = map[configs.ExplorerName]map[uint64]string{
	configs.ExplorerNameEtherscan: {
		ChainIDMainnet: "https://api.etherscan.io/api",
		ChainIDSepolia: "https://api-sepolia.etherscan.io/api",
	},
	configs.ExplorerNameBlockscout: {
		ChainIDMainnet: "https://eth.blockscout.com/api",
		ChainIDSepolia: "https://eth-sepolia.blockscout.com/api",
	},
}

type (
	verifier interface {
		Verify(ctx context.Context, req Request) error
	}

	Backend struct {
		Name   configs.ExplorerName
		APIURL string
		APIKey string
	}

	Outcome struct {
		Backend  configs.ExplorerName
		FutureID string
		Contract string
		Address  common.Address
		Err      error
	}

	Service struct {
		cfg       *configs.Config
		newClient func(backend Backend) verifier
		logger    *slog.Logger
	}
)

func NewService(cfg *configs.Config, opts ...Option) *Service {
	return &Service{
		cfg: cfg,
		newClient: func(backend Backend) verifier {
			return NewClient(backend.APIURL, backend.APIKey, opts...)
		},
		logger: logger.Named("verify"),
	}
}

// ResolveAPIURL finds the API of explorer for chainID: a configured chain
// descriptor wins over the built-in chains.
func ResolveAPIURL(cfg *configs.Config, explorer configs.ExplorerName, chainID uint64) (string, error) {
	if descriptor, ok := cfg.ChainDescriptors[strconv.FormatUint(chainID, 10)]; ok {
		if blockExplorer, ok := descriptor.BlockExplorers[explorer]; ok && blockExplorer.APIURL != "" {
			return blockExplorer.APIURL, nil
		}
	}

	if apiURL, ok := builtinAPIURLs[explorer][chainID]; ok {
		return apiURL, nil
	}

	return "", fmt.Errorf("%s does not know chain %d, add it to chain-descriptors", explorer, chainID)
}

// Backends returns the enabled explorers able to serve chainID.
func (s *Service) Backends(chainID uint64) ([]Backend, error) {
	enabled := []struct {
		name     configs.ExplorerName
		settings configs.VerifyBackend
	}{
		{configs.ExplorerNameEtherscan, s.cfg.Verify.Etherscan},
		{configs.ExplorerNameBlockscout, s.cfg.Verify.Blockscout},
	}

	var (
		backends []Backend
		errs     []error
	)
	for _, candidate := range enabled {
		if !candidate.settings.Enabled {
			continue
		}

		apiURL, err := ResolveAPIURL(s.cfg, candidate.name, chainID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		backends = append(backends, Backend{Name: candidate.name, APIURL: apiURL, APIKey: candidate.settings.APIKey})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(backends) == 0 {
		return nil, errors.New("no verification backend is enabled")
	}

	return backends, nil
}

// VerifyAll verifies every deployment on every enabled backend. A failure
// does not stop the remaining contracts; all failures are returned joined.
func (s *Service) VerifyAll(ctx context.Context, chainID uint64, deployments []deployer.JournalEntry, artifacts map[string]contracts.CompiledContract, buildInfo contracts.BuildInfo) ([]Outcome, error) {
	backends, err := s.Backends(chainID)
	if err != nil {
		return nil, err
	}

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, backend := range backends {
		client := s.newClient(backend)
		log := s.logger.With("backend", backend.Name, "chain_id", chainID)

		for _, deployment := range deployments {
			outcome := Outcome{
				Backend:  backend.Name,
				FutureID: deployment.FutureID,
				Contract: deployment.ContractName,
				Address:  deployment.Address,
			}

			contract, ok := artifacts[deployment.ContractName]
			if !ok {
				outcome.Err = fmt.Errorf("no artifact for contract %s", deployment.ContractName)
			} else {
				log.With("contract", deployment.ContractName, "address", deployment.Address.Hex()).Info("verifying contract")
				outcome.Err = client.Verify(ctx, Request{
					Address:         deployment.Address,
					ContractName:    contract.QualifiedName(deployment.ContractName),
					CompilerVersion: buildInfo.SolcLongVersion,
					Input:           buildInfo.Input,
					ConstructorArgs: deployment.ConstructorArgs,
				})
			}

			if outcome.Err != nil {
				errs = append(errs, fmt.Errorf("%s on %s: %w", deployment.FutureID, backend.Name, outcome.Err))
			}
			outcomes = append(outcomes, outcome)
		}
	}

	if len(errs) > 0 {
		return outcomes, fmt.Errorf("verification failed: %w", errors.Join(errs...))
	}

	return outcomes, nil
}
