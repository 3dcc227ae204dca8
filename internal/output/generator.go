// Package output maintains output.yaml, the summary other tools read the
// deployed addresses and ABIs from.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	bytesWriter interface {
		WriteBytes(path string, data []byte) error
	}

	// Deployment is what one deploy run contributes to the output.
	Deployment struct {
		Network  string
		ChainID  uint64
		RPCURL   string
		Deployer common.Address
		Module   string
		// Contracts maps module result names to what they resolved to.
		Contracts map[string]DeployedContract
	}

	DeployedContract struct {
		ContractName string
		Address      common.Address
	}

	Generator struct {
		writer bytesWriter
		path   string
		logger *slog.Logger
	}
)

func NewGenerator(writer bytesWriter, path string) *Generator {
	return &Generator{writer: writer, path: path, logger: logger.Named("output")}
}

// Load reads the current output file. A missing file yields an empty model.
func (g *Generator) Load() (*Model, error) {
	model := &Model{Networks: make(map[string]NetworkOutput)}

	data, err := os.ReadFile(g.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read output file. Err: '%w'", err)
	}

	if err := yaml.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("could not parse output file %s. Err: '%w'", g.path, err)
	}
	if model.Networks == nil {
		model.Networks = make(map[string]NetworkOutput)
	}

	return model, nil
}

// Generate merges deployment into the output file. Contracts of other
// modules already recorded for the same chain are kept.
func (g *Generator) Generate(deployment Deployment, artifacts map[string]contracts.CompiledContract) error {
	model, err := g.Load()
	if err != nil {
		return err
	}

	network := model.Networks[deployment.Network]
	if network.ChainID != deployment.ChainID {
		network = NetworkOutput{}
	}
	network.ChainID = deployment.ChainID
	network.RPCURL = deployment.RPCURL
	network.Deployer = deployment.Deployer
	if !slices.Contains(network.Modules, deployment.Module) {
		network.Modules = append(network.Modules, deployment.Module)
		slices.Sort(network.Modules)
	}
	if network.Contracts == nil {
		network.Contracts = make(map[string]ContractConfig)
	}

	for name, deployed := range deployment.Contracts {
		artifact, ok := artifacts[deployed.ContractName]
		if !ok {
			return fmt.Errorf("no artifact for contract %s", deployed.ContractName)
		}
		network.Contracts[name] = ContractConfig{
			Contract: deployed.ContractName,
			Address:  deployed.Address,
			ABI:      SingleQuotedString(compactJSON(artifact.RawABI)),
		}
	}
	model.Networks[deployment.Network] = network

	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("could not marshal output model. Err: '%w'", err)
	}

	if err := g.writer.WriteBytes(g.path, data); err != nil {
		return fmt.Errorf("could not write output file. Err: '%w'", err)
	}

	g.logger.With("path", g.path, "network", deployment.Network, "contracts", len(deployment.Contracts)).Info("output file updated")

	return nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
