// Package bridge wires configuration, modules, compiler, deployer, verifier
// and output into the commands of the bridge deployer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/deployer"
	"github.com/compose-network/evm-bridge/internal/ignition"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	jsonfs "github.com/compose-network/evm-bridge/internal/infra/filesystem/json"
	"github.com/compose-network/evm-bridge/internal/infra/git"
	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/compose-network/evm-bridge/internal/modules"
	"github.com/compose-network/evm-bridge/internal/output"
	"github.com/compose-network/evm-bridge/internal/verify"
)

type (
	cloner interface {
		Clone(ctx context.Context, destDir string, repo git.Repository) (string, error)
	}

	containerRunner interface {
		EnsureImage(ctx context.Context, image string) error
		Run(ctx context.Context, opts docker.RunOptions) (string, error)
	}

	chainClient interface {
		deployer.Backend
		Close()
	}

	dialFunc func(ctx context.Context, url string) (chainClient, error)

	contractVerifier interface {
		VerifyAll(ctx context.Context, chainID uint64, deployments []deployer.JournalEntry, artifacts map[string]contracts.CompiledContract, buildInfo contracts.BuildInfo) ([]verify.Outcome, error)
	}

	Service struct {
		cfg      *configs.Config
		env      configs.Environment
		reader   *jsonfs.Reader
		writer   *jsonfs.Writer
		cloner   cloner
		verifier contractVerifier
		dial     dialFunc
		logger   *slog.Logger
	}

	// DeployReport is the outcome of one deploy run.
	DeployReport struct {
		Network  configs.NetworkName
		Result   *deployer.Result
		Outcomes []verify.Outcome
	}
)

func NewService(cfg *configs.Config, env configs.Environment) *Service {
	return &Service{
		cfg:      cfg,
		env:      env,
		reader:   jsonfs.NewReader(),
		writer:   jsonfs.NewWriter(),
		cloner:   git.NewCloner(),
		verifier: verify.NewService(cfg),
		dial:     dialNetwork,
		logger:   logger.Named("bridge_service"),
	}
}

func dialNetwork(ctx context.Context, url string) (chainClient, error) {
	client, err := deployer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// BuildPlan constructs the named modules with the environment and the
// configured parameter file, then orders their futures.
func (s *Service) BuildPlan(moduleIDs []string) (*ignition.Plan, error) {
	params, err := ignition.LoadParameters(s.reader, s.cfg.Deploy.ParametersFile)
	if err != nil {
		return nil, err
	}

	built := make([]*ignition.Module, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		constructor, err := modules.Lookup(id)
		if err != nil {
			return nil, err
		}

		module, err := constructor(s.env, params)
		if err != nil {
			return nil, err
		}
		built = append(built, module)
	}

	return ignition.NewPlan(built...)
}

// Compile compiles every contract the modules reference with the configured
// profile. Sources come from the contracts repository when one is configured.
func (s *Service) Compile(ctx context.Context, runner containerRunner) (map[string]contracts.CompiledContract, error) {
	profile, err := s.cfg.Solidity.Profile(s.cfg.Deploy.Profile)
	if err != nil {
		return nil, err
	}

	sourcesDir, err := s.resolveSources(ctx)
	if err != nil {
		return nil, err
	}

	names := slices.Sorted(maps.Keys(contracts.Contracts))
	s.logger.With("sources", sourcesDir, "profile", s.cfg.Deploy.Profile, "contracts", names).Info("starting contract compilation")

	compiler := contracts.NewCompiler(runner, s.writer, sourcesDir, s.cfg.Paths.Artifacts)
	compiled, err := compiler.Compile(ctx, s.cfg.Deploy.Profile, profile, names)
	if err != nil {
		return nil, fmt.Errorf("contract compilation failed: %w", err)
	}

	s.logger.With("artifacts", s.cfg.Paths.Artifacts).Info("contract compilation completed successfully")

	return compiled, nil
}

func (s *Service) resolveSources(ctx context.Context) (string, error) {
	repo := s.cfg.Repository
	if repo.URL == "" {
		if s.cfg.Paths.Sources == "" {
			return "", errors.New("paths.sources is required when no contracts repository is configured")
		}
		return s.cfg.Paths.Sources, nil
	}

	checkout, err := s.cloner.Clone(ctx, s.cfg.Paths.Services, git.Repository{
		Name: repositoryName(repo.URL),
		URL:  repo.URL,
		Ref:  repo.Branch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone contracts repository: %w", err)
	}

	return filepath.Join(checkout, repo.Subdir), nil
}

// Deploy executes the plan of moduleIDs on the configured network, updates
// the output file and optionally verifies the contracts.
func (s *Service) Deploy(ctx context.Context, moduleIDs []string) (*DeployReport, error) {
	if err := s.cfg.ValidateDeploy(); err != nil {
		return nil, err
	}

	// module construction fails on missing variables before anything is sent
	plan, err := s.BuildPlan(moduleIDs)
	if err != nil {
		return nil, err
	}

	loader := contracts.NewLoader(s.reader, s.cfg.Paths.Artifacts)
	artifacts, err := loader.LoadCompiledContracts()
	if err != nil {
		return nil, err
	}
	buildInfo, err := loader.LoadBuildInfo()
	if err != nil {
		return nil, err
	}
	if buildInfo.Profile != s.cfg.Deploy.Profile {
		return nil, fmt.Errorf("artifacts in %s were compiled with profile %q but profile %q was requested, run compile --profile %s first",
			s.cfg.Paths.Artifacts, buildInfo.Profile, s.cfg.Deploy.Profile, s.cfg.Deploy.Profile)
	}

	networkName := s.cfg.Deploy.Network
	network, err := s.cfg.Network(networkName)
	if err != nil {
		return nil, err
	}
	key, err := deployer.ParsePrivateKey(network.Accounts[0])
	if err != nil {
		return nil, err
	}

	s.logger.With("network", networkName, "url", network.URL).Info("connecting to network")
	client, err := s.dial(ctx, network.URL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	store := deployer.NewStore(s.reader, s.writer, s.cfg.Paths.Deployments)
	executor := deployer.NewExecutor(client, store, key, deployer.Settings{
		Network:             string(networkName),
		ExpectedChainID:     network.ChainID,
		GasLimit:            s.cfg.Deploy.GasLimit,
		ConfirmationTimeout: s.cfg.Deploy.ConfirmationTimeout,
		Reset:               s.cfg.Deploy.Reset,
	})

	s.logger.With("network", networkName, "modules", moduleIDs).Info("starting deployment")
	result, err := executor.Execute(ctx, plan, artifacts)
	if err != nil {
		return nil, fmt.Errorf("deployment to %s failed: %w", networkName, err)
	}

	generator := output.NewGenerator(s.writer, s.cfg.Paths.Output)
	for _, module := range plan.Modules {
		deployed := make(map[string]output.DeployedContract, len(module.Results))
		for name, future := range module.Results {
			deployed[name] = output.DeployedContract{
				ContractName: future.ContractName,
				Address:      result.Addresses[future.ID()],
			}
		}

		if err := generator.Generate(output.Deployment{
			Network:   string(networkName),
			ChainID:   result.ChainID,
			RPCURL:    network.URL,
			Deployer:  result.Deployer,
			Module:    module.ID,
			Contracts: deployed,
		}, artifacts); err != nil {
			return nil, err
		}
	}

	report := &DeployReport{Network: networkName, Result: result}
	if !s.cfg.Deploy.Verify {
		return report, nil
	}

	report.Outcomes, err = s.verify(ctx, result.ChainID, result.Journal, artifacts)

	return report, err
}

// Verify verifies every contract recorded in the journal of the configured
// network's chain.
func (s *Service) Verify(ctx context.Context) ([]verify.Outcome, error) {
	network, err := s.cfg.Network(s.cfg.Deploy.Network)
	if err != nil {
		return nil, err
	}
	if network.URL == "" {
		return nil, fmt.Errorf("networks.%s.url is required", s.cfg.Deploy.Network)
	}

	client, err := s.dial(ctx, network.URL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	chainIDBig, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	chainID := chainIDBig.Uint64()

	journal, err := deployer.NewStore(s.reader, s.writer, s.cfg.Paths.Deployments).Load(chainID)
	if err != nil {
		return nil, err
	}

	artifacts, err := contracts.NewLoader(s.reader, s.cfg.Paths.Artifacts).LoadCompiledContracts()
	if err != nil {
		return nil, err
	}

	return s.verify(ctx, chainID, journal, artifacts)
}

func (s *Service) verify(ctx context.Context, chainID uint64, journal *deployer.Journal, artifacts map[string]contracts.CompiledContract) ([]verify.Outcome, error) {
	deployments := journal.Deployments()
	if len(deployments) == 0 {
		return nil, fmt.Errorf("nothing is deployed on chain %d", chainID)
	}

	buildInfo, err := contracts.NewLoader(s.reader, s.cfg.Paths.Artifacts).LoadBuildInfo()
	if err != nil {
		return nil, err
	}

	s.logger.With("chain_id", chainID, "contracts", len(deployments)).Info("verifying deployed contracts")

	return s.verifier.VerifyAll(ctx, chainID, deployments, artifacts, buildInfo)
}

func repositoryName(url string) string {
	return strings.TrimSuffix(path.Base(url), ".git")
}
