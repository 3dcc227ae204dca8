package configs

import "strconv"

// ResolveNetworks builds the environment driven networks. Unset variables
// fall back to an empty URL and a single empty account.
func ResolveNetworks(env Environment) map[NetworkName]Network {
	privateKey := env.Get(EnvPrivateKey)

	return map[NetworkName]Network{
		NetworkNameAlfajores: {
			Type:     NetworkTypeHTTP,
			URL:      env.Get(EnvAlfajoresRPCURL),
			Accounts: []string{privateKey},
		},
		NetworkNameSepolia: {
			Type:     NetworkTypeHTTP,
			URL:      env.Get(EnvSepoliaRPCURL),
			Accounts: []string{privateKey},
		},
	}
}

// DefaultChainDescriptors returns the chains that explorers do not know out of the box.
func DefaultChainDescriptors() map[string]ChainDescriptor {
	return map[string]ChainDescriptor{
		strconv.Itoa(AlfajoresChainID): {
			Name: string(NetworkNameAlfajores),
			BlockExplorers: map[ExplorerName]BlockExplorer{
				ExplorerNameEtherscan: {
					Name:   "Celo Alfajores Explorer",
					URL:    "https://alfajores.celoscan.io/",
					APIURL: "https://api-alfajores.celoscan.io/api",
				},
			},
		},
	}
}
