// Package modules declares the deployment modules of the NFT bridge.
package modules

import (
	"fmt"
	"sort"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/ignition"
)

const (
	SourceChainID = "SourceChain"
	TargetChainID = "TargetChain"

	// DefaultBridgeTarget is the peer the bridge forwards to on the other side.
	DefaultBridgeTarget = "0xA2a8aE5f7bFF1750D88B0959F1201C819859eF88"
	// DefaultWormholeChainID is the wormhole id of the Solana testnet.
	DefaultWormholeChainID = 1
	// CollectionSize is the number of NFTs minted to the collector.
	CollectionSize = 10

	ParamBridgeTarget    = "targetAddress"
	ParamWormholeChainID = "wormholeChainId"
)

// Constructor builds a module. Every required variable is checked before
// any future is declared.
type Constructor func(env configs.Environment, params ignition.Parameters) (*ignition.Module, error)

var registry = map[string]Constructor{
	SourceChainID: SourceChain,
	TargetChainID: TargetChain,
}

// Lookup returns the constructor registered under id.
func Lookup(id string) (Constructor, error) {
	constructor, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown module %q, known modules: %v", id, Names())
	}

	return constructor, nil
}

// Names lists the registered module ids.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SourceChain deploys the NFT collection, the message sender and the bridge
// wiring them together, then mints the collection to the collector.
func SourceChain(env configs.Environment, params ignition.Parameters) (*ignition.Module, error) {
	values, err := configs.Require(env, configs.EnvSourceChainRelayer, configs.EnvCollectorAddress)
	if err != nil {
		return nil, err
	}
	relayer := values[configs.EnvSourceChainRelayer]
	collector := values[configs.EnvCollectorAddress]

	return ignition.BuildModule(SourceChainID, params.For(SourceChainID), func(m *ignition.ModuleBuilder) (map[string]*ignition.ContractFuture, error) {
		customNft := m.Contract(contracts.ContractNameCustomNFT)
		messageSender := m.Contract(contracts.ContractNameMessageSender, relayer)
		crossChainBridge := m.Contract(contracts.ContractNameCrossChainBridge,
			customNft,
			messageSender,
			m.StringParameter(ParamBridgeTarget, DefaultBridgeTarget),
			m.BigIntParameter(ParamWormholeChainID, DefaultWormholeChainID),
		)

		m.Call(customNft, contracts.MethodMintCollectionNFT, collector, CollectionSize)

		return map[string]*ignition.ContractFuture{
			"messageSender":    messageSender,
			"customNft":        customNft,
			"crossChainBridge": crossChainBridge,
		}, nil
	})
}

// TargetChain deploys the receiving end of the bridge.
func TargetChain(env configs.Environment, params ignition.Parameters) (*ignition.Module, error) {
	values, err := configs.Require(env, configs.EnvTargetChainRelayer)
	if err != nil {
		return nil, err
	}

	return ignition.BuildModule(TargetChainID, params.For(TargetChainID), func(m *ignition.ModuleBuilder) (map[string]*ignition.ContractFuture, error) {
		messageReceiver := m.Contract(contracts.ContractNameMessageReceiver, values[configs.EnvTargetChainRelayer])

		return map[string]*ignition.ContractFuture{
			"messageReceiver": messageReceiver,
		}, nil
	})
}
