package contracts

import (
	"encoding/json"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	CompiledContract struct {
		ABI        abi.ABI
		RawABI     string
		Bytecode   []byte
		SourceName string
	}

	// BuildInfo is the compiler input behind a set of artifacts, kept for
	// source verification.
	BuildInfo struct {
		// Profile names the compiler profile the artifacts were built with.
		Profile          configs.ProfileName `json:"profile"`
		OptimizerEnabled bool                `json:"optimizerEnabled"`
		OptimizerRuns    int                 `json:"optimizerRuns,omitempty"`
		SolcVersion      string              `json:"solcVersion"`
		SolcLongVersion  string              `json:"solcLongVersion"`
		Input            json.RawMessage     `json:"input"`
	}
)

const (
	ContractNameCustomNFT        = "CustomNFT"
	ContractNameMessageSender    = "MessageSender"
	ContractNameCrossChainBridge = "CrossChainBridge"
	ContractNameMessageReceiver  = "MessageReceiver"

	MethodMintCollectionNFT = "mintCollectionNFT"

	contractsFileName = "contracts.json"
	buildInfoFileName = "build-info.json"
)

// Contracts is the set of contracts the deployment modules reference.
var Contracts = map[string]struct{}{
	ContractNameCustomNFT:        {},
	ContractNameMessageSender:    {},
	ContractNameCrossChainBridge: {},
	ContractNameMessageReceiver:  {},
}

// QualifiedName is the "<source>:<contract>" form explorers expect.
func (c CompiledContract) QualifiedName(name string) string {
	if c.SourceName == "" {
		return name
	}

	return c.SourceName + ":" + name
}
