package contracts

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compose-network/evm-bridge/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type artifact struct {
	ABI        json.RawMessage `json:"abi"`
	Bytecode   string          `json:"bytecode"`
	SourceName string          `json:"sourceName,omitempty"`
}

// Loader reads the artifacts written by the Compiler.
type Loader struct {
	reader filesystem.Reader
	dir    string
}

func NewLoader(reader filesystem.Reader, artifactsDir string) *Loader {
	return &Loader{reader: reader, dir: artifactsDir}
}

// LoadCompiledContracts loads every artifact from contracts.json.
func (l *Loader) LoadCompiledContracts() (map[string]CompiledContract, error) {
	var raw map[string]artifact
	path := filepath.Join(l.dir, contractsFileName)
	if err := l.reader.ReadJSON(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read compiled contracts from %s: %w", path, err)
	}

	return parseContracts(raw)
}

// LoadBuildInfo loads the compiler input used to produce the artifacts.
func (l *Loader) LoadBuildInfo() (BuildInfo, error) {
	var info BuildInfo
	path := filepath.Join(l.dir, buildInfoFileName)
	if err := l.reader.ReadJSON(path, &info); err != nil {
		return BuildInfo{}, fmt.Errorf("failed to read build info from %s: %w", path, err)
	}

	return info, nil
}

// ParseContracts parses contracts.json content.
func ParseContracts(data []byte) (map[string]CompiledContract, error) {
	var raw map[string]artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse compiled contracts: %w", err)
	}

	return parseContracts(raw)
}

func parseContracts(raw map[string]artifact) (map[string]CompiledContract, error) {
	loaded := make(map[string]CompiledContract, len(raw))

	for name, contract := range raw {
		parsedABI, err := abi.JSON(strings.NewReader(string(contract.ABI)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}

		bytecodeHex := strings.TrimPrefix(strings.TrimSpace(contract.Bytecode), "0x")
		if bytecodeHex == "" {
			return nil, fmt.Errorf("contract %s has no bytecode", name)
		}
		bytecode, err := hexutil.Decode("0x" + bytecodeHex)
		if err != nil {
			return nil, fmt.Errorf("invalid bytecode for %s: %w", name, err)
		}

		loaded[name] = CompiledContract{
			ABI:        parsedABI,
			RawABI:     string(contract.ABI),
			Bytecode:   bytecode,
			SourceName: contract.SourceName,
		}
	}

	return loaded, nil
}
