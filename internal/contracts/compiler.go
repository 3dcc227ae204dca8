package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	"github.com/compose-network/evm-bridge/internal/infra/filesystem"
	"github.com/compose-network/evm-bridge/internal/logger"
)

const (
	DefaultSolcImage = "ethereum/solc:%s"

	containerWorkDir = "/work"
	inputFileName    = "input.json"
	nodeModulesDir   = "node_modules"
)

var longVersionPattern = regexp.MustCompile(`Version: (\d+\.\d+\.\d+\+commit\.[0-9a-f]+)`)

type (
	containerRunner interface {
		EnsureImage(ctx context.Context, image string) error
		Run(ctx context.Context, opts docker.RunOptions) (string, error)
	}

	// Compiler compiles Solidity sources with solc running in docker.
	Compiler struct {
		runner     containerRunner
		writer     filesystem.Writer
		sourcesDir string
		outputDir  string
		image      string
		logger     *slog.Logger
	}

	standardInput struct {
		Language string                    `json:"language"`
		Sources  map[string]standardSource `json:"sources"`
		Settings standardSettings          `json:"settings"`
	}

	standardSource struct {
		Content string `json:"content"`
	}

	standardSettings struct {
		Optimizer       standardOptimizer              `json:"optimizer"`
		OutputSelection map[string]map[string][]string `json:"outputSelection"`
	}

	standardOptimizer struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs,omitempty"`
	}

	standardOutput struct {
		Errors []struct {
			Severity         string `json:"severity"`
			FormattedMessage string `json:"formattedMessage"`
		} `json:"errors"`
		Contracts map[string]map[string]struct {
			ABI json.RawMessage `json:"abi"`
			EVM struct {
				Bytecode struct {
					Object string `json:"object"`
				} `json:"bytecode"`
			} `json:"evm"`
		} `json:"contracts"`
	}
)

// NewCompiler creates a compiler reading every .sol file below sourcesDir
// and writing artifacts to outputDir.
func NewCompiler(runner containerRunner, writer filesystem.Writer, sourcesDir, outputDir string) *Compiler {
	return &Compiler{
		runner:     runner,
		writer:     writer,
		sourcesDir: sourcesDir,
		outputDir:  outputDir,
		image:      DefaultSolcImage,
		logger:     logger.Named("contracts_compiler"),
	}
}

// Compile compiles the sources with the profile registered as profileName and
// persists artifacts for contractNames. An empty contractNames keeps every
// deployable contract.
func (c *Compiler) Compile(ctx context.Context, profileName configs.ProfileName, profile configs.Profile, contractNames []string) (map[string]CompiledContract, error) {
	c.logger.
		With("sources_dir", c.sourcesDir, "profile", profileName, "version", profile.Version, "optimizer", profile.Optimizer.Enabled).
		Info("starting contract compilation")

	sources, err := collectSources(c.sourcesDir)
	if err != nil {
		return nil, err
	}

	input := buildInput(sources, profile)

	stagingDir, err := os.MkdirTemp("", "solc-input-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	if err := c.writer.WriteJSON(filepath.Join(stagingDir, inputFileName), input); err != nil {
		return nil, fmt.Errorf("failed to write compiler input: %w", err)
	}

	image := fmt.Sprintf(c.image, profile.Version)
	if err := c.runner.EnsureImage(ctx, image); err != nil {
		return nil, fmt.Errorf("failed to prepare compiler image: %w", err)
	}

	versionOut, err := c.runner.Run(ctx, docker.RunOptions{Image: image, Cmd: []string{"--version"}, CaptureOut: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read compiler version: %w", err)
	}
	longVersion, err := parseLongVersion(versionOut)
	if err != nil {
		return nil, err
	}

	output, err := c.runner.Run(ctx, docker.RunOptions{
		Image:      image,
		Cmd:        c.solcArgs(),
		WorkDir:    containerWorkDir,
		CopyIn:     c.copyIn(stagingDir),
		CaptureOut: true,
	})
	if err != nil {
		return nil, fmt.Errorf("solc failed: %w", err)
	}

	artifacts, err := c.extractArtifacts([]byte(output), contractNames)
	if err != nil {
		return nil, err
	}

	if err := c.writer.WriteJSON(filepath.Join(c.outputDir, contractsFileName), artifacts); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", contractsFileName, err)
	}

	rawInput, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compiler input: %w", err)
	}
	buildInfo := BuildInfo{
		Profile:          profileName,
		OptimizerEnabled: input.Settings.Optimizer.Enabled,
		OptimizerRuns:    input.Settings.Optimizer.Runs,
		SolcVersion:      profile.Version,
		SolcLongVersion:  longVersion,
		Input:            rawInput,
	}
	if err := c.writer.WriteJSON(filepath.Join(c.outputDir, buildInfoFileName), buildInfo); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", buildInfoFileName, err)
	}

	c.logger.With("count", len(artifacts), "output_dir", c.outputDir).Info("contracts compiled successfully")

	return parseContracts(artifacts)
}

func (c *Compiler) solcArgs() []string {
	args := []string{"--standard-json", "--base-path", containerWorkDir}
	if c.hasNodeModules() {
		args = append(args, "--include-path", containerWorkDir+"/"+nodeModulesDir)
	}

	return append(args, containerWorkDir+"/"+inputFileName)
}

func (c *Compiler) copyIn(stagingDir string) []docker.CopyIn {
	copies := []docker.CopyIn{{ContainerDir: containerWorkDir, HostDir: stagingDir}}
	if c.hasNodeModules() {
		copies = append(copies, docker.CopyIn{
			ContainerDir: containerWorkDir,
			HostDir:      filepath.Dir(c.sourcesDir),
			Include:      []string{nodeModulesDir},
		})
	}

	return copies
}

func (c *Compiler) hasNodeModules() bool {
	info, err := os.Stat(filepath.Join(filepath.Dir(c.sourcesDir), nodeModulesDir))
	return err == nil && info.IsDir()
}

func (c *Compiler) extractArtifacts(output []byte, contractNames []string) (map[string]artifact, error) {
	var result standardOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse solc output: %w", err)
	}

	var errs []error
	for _, diagnostic := range result.Errors {
		if diagnostic.Severity == "error" {
			errs = append(errs, errors.New(strings.TrimSpace(diagnostic.FormattedMessage)))
			continue
		}
		c.logger.Warn("solc diagnostic", "severity", diagnostic.Severity, "message", strings.TrimSpace(diagnostic.FormattedMessage))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("compilation failed: %w", errors.Join(errs...))
	}

	wanted := make(map[string]struct{}, len(contractNames))
	for _, name := range contractNames {
		wanted[name] = struct{}{}
	}

	artifacts := make(map[string]artifact)
	for _, sourceName := range sortedKeys(result.Contracts) {
		for name, contract := range result.Contracts[sourceName] {
			if _, ok := wanted[name]; len(wanted) > 0 && !ok {
				continue
			}
			if contract.EVM.Bytecode.Object == "" {
				continue
			}
			if existing, dup := artifacts[name]; dup {
				return nil, fmt.Errorf("contract %s is defined in both %s and %s", name, existing.SourceName, sourceName)
			}
			artifacts[name] = artifact{
				ABI:        contract.ABI,
				Bytecode:   "0x" + strings.TrimPrefix(contract.EVM.Bytecode.Object, "0x"),
				SourceName: sourceName,
			}
		}
	}

	for _, name := range contractNames {
		if _, ok := artifacts[name]; !ok {
			return nil, fmt.Errorf("contract %s not found in compiler output", name)
		}
	}

	return artifacts, nil
}

// collectSources reads every .sol file below dir keyed by its path relative to
// the parent of dir, e.g. "contracts/CustomNFT.sol".
func collectSources(dir string) (map[string]string, error) {
	root := filepath.Dir(dir)
	sources := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sol" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources[filepath.ToSlash(rel)] = string(content)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sources from %s: %w", dir, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no Solidity sources found in %s", dir)
	}

	return sources, nil
}

func buildInput(sources map[string]string, profile configs.Profile) standardInput {
	input := standardInput{
		Language: "Solidity",
		Sources:  make(map[string]standardSource, len(sources)),
		Settings: standardSettings{
			Optimizer: standardOptimizer{Enabled: profile.Optimizer.Enabled},
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode.object"}},
			},
		},
	}
	if profile.Optimizer.Enabled {
		input.Settings.Optimizer.Runs = profile.Optimizer.Runs
	}
	for name, content := range sources {
		input.Sources[name] = standardSource{Content: content}
	}

	return input
}

func parseLongVersion(output string) (string, error) {
	match := longVersionPattern.FindStringSubmatch(output)
	if match == nil {
		return "", fmt.Errorf("unexpected solc version output: %q", strings.TrimSpace(output))
	}

	return "v" + match[1], nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
