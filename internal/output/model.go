package output

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Networks map[string]NetworkOutput `yaml:"networks"`
	}

	NetworkOutput struct {
		ChainID   uint64                    `yaml:"chain-id"`
		RPCURL    string                    `yaml:"rpc-url"`
		Deployer  common.Address            `yaml:"deployer"`
		Modules   []string                  `yaml:"modules"`
		Contracts map[string]ContractConfig `yaml:"contracts"`
	}

	ContractConfig struct {
		Contract string             `yaml:"contract"`
		Address  common.Address     `yaml:"address"`
		ABI      SingleQuotedString `yaml:"abi"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
