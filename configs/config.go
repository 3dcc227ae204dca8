package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

var Values Config

type (
	NetworkName  string
	ProfileName  string
	ExplorerName string

	Config struct {
		Solidity         Solidity                   `mapstructure:"solidity"`
		Networks         map[NetworkName]Network    `mapstructure:"networks"`
		ChainDescriptors map[string]ChainDescriptor `mapstructure:"chain-descriptors"`
		Verify           Verify                     `mapstructure:"verify"`
		Paths            Paths                      `mapstructure:"paths"`
		Repository       Repository                 `mapstructure:"contracts-repository"`
		Deploy           Deploy                     `mapstructure:"deploy"`
		Devnet           Devnet                     `mapstructure:"devnet"`
		Log              Log                        `mapstructure:"log"`
	}

	Solidity struct {
		Profiles map[ProfileName]Profile `mapstructure:"profiles"`
	}

	Profile struct {
		Version   string    `mapstructure:"version"`
		Optimizer Optimizer `mapstructure:"optimizer"`
	}

	Optimizer struct {
		Enabled bool `mapstructure:"enabled"`
		Runs    int  `mapstructure:"runs"`
	}

	Network struct {
		Type     string   `mapstructure:"type"`
		URL      string   `mapstructure:"url"`
		Accounts []string `mapstructure:"accounts"`
		// ChainID is optional. When set, the RPC endpoint must report the same id.
		ChainID uint64 `mapstructure:"chain-id"`
	}

	ChainDescriptor struct {
		Name           string                         `mapstructure:"name"`
		BlockExplorers map[ExplorerName]BlockExplorer `mapstructure:"block-explorers"`
	}

	BlockExplorer struct {
		Name   string `mapstructure:"name"`
		URL    string `mapstructure:"url"`
		APIURL string `mapstructure:"api-url"`
	}

	Verify struct {
		Etherscan  VerifyBackend `mapstructure:"etherscan"`
		Blockscout VerifyBackend `mapstructure:"blockscout"`
	}

	VerifyBackend struct {
		APIKey  string `mapstructure:"api-key"`
		Enabled bool   `mapstructure:"enabled"`
	}

	Paths struct {
		Sources     string `mapstructure:"sources"`
		Artifacts   string `mapstructure:"artifacts"`
		Deployments string `mapstructure:"deployments"`
		Output      string `mapstructure:"output"`
		EnvFile     string `mapstructure:"env-file"`
		Services    string `mapstructure:"services"`
	}

	// Repository optionally provides the Solidity sources. When URL is empty
	// the sources are read from Paths.Sources.
	Repository struct {
		URL    string `mapstructure:"url"`
		Branch string `mapstructure:"branch"`
		Subdir string `mapstructure:"subdir"`
	}

	Deploy struct {
		Network             NetworkName   `mapstructure:"network"`
		Profile             ProfileName   `mapstructure:"profile"`
		ParametersFile      string        `mapstructure:"parameters-file"`
		GasLimit            uint64        `mapstructure:"gas-limit"`
		ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout"`
		Verify              bool          `mapstructure:"verify"`
		Reset               bool          `mapstructure:"reset"`
	}

	Devnet struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
		ChainID       uint64 `mapstructure:"chain-id"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}
)

const (
	NetworkNameAlfajores NetworkName = "alfajores"
	NetworkNameSepolia   NetworkName = "sepolia"
	NetworkNameDevnet    NetworkName = "devnet"

	ProfileNameDefault    ProfileName = "default"
	ProfileNameProduction ProfileName = "production"

	ExplorerNameEtherscan  ExplorerName = "etherscan"
	ExplorerNameBlockscout ExplorerName = "blockscout"

	NetworkTypeHTTP = "http"

	AlfajoresChainID = 44787
)

// Profile returns the compiler profile with the given name.
func (s Solidity) Profile(name ProfileName) (Profile, error) {
	profile, ok := s.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("solidity profile %q is not configured", name)
	}

	return profile, nil
}

// Network returns the network with the given name.
func (c *Config) Network(name NetworkName) (Network, error) {
	network, ok := c.Networks[name]
	if !ok {
		return Network{}, fmt.Errorf("network %q is not configured", name)
	}

	return network, nil
}

// ApplyEnvironment overlays every environment derived value on top of the
// file based configuration.
func (c *Config) ApplyEnvironment(env Environment) {
	if c.Networks == nil {
		c.Networks = make(map[NetworkName]Network)
	}
	for name, network := range ResolveNetworks(env) {
		// the endpoint comes from the environment, a chain-id pin from the file survives
		if configured, ok := c.Networks[name]; ok {
			network.ChainID = configured.ChainID
		}
		c.Networks[name] = network
	}

	if c.ChainDescriptors == nil {
		c.ChainDescriptors = make(map[string]ChainDescriptor)
	}
	for id, descriptor := range DefaultChainDescriptors() {
		if _, ok := c.ChainDescriptors[id]; !ok {
			c.ChainDescriptors[id] = descriptor
		}
	}

	c.Verify.Etherscan.APIKey = env.Get(EnvEtherscanAPIKey)
}

func (s Solidity) Validate() error {
	var errs []error

	if _, ok := s.Profiles[ProfileNameDefault]; !ok {
		errs = append(errs, errors.New("solidity.profiles.default is required"))
	}
	for name, profile := range s.Profiles {
		if profile.Version == "" {
			errs = append(errs, fmt.Errorf("solidity.profiles.%s.version is required", name))
		}
		if profile.Optimizer.Enabled && profile.Optimizer.Runs <= 0 {
			errs = append(errs, fmt.Errorf("solidity.profiles.%s.optimizer.runs must be positive", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("solidity configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateNetwork checks that the named network can sign and send transactions.
func (c *Config) ValidateNetwork(name NetworkName) error {
	network, err := c.Network(name)
	if err != nil {
		return err
	}

	var errs []error

	if network.Type != NetworkTypeHTTP {
		errs = append(errs, fmt.Errorf("networks.%s.type must be '%s'", name, NetworkTypeHTTP))
	}
	if network.URL == "" {
		errs = append(errs, fmt.Errorf("networks.%s.url is required", name))
	}
	if len(network.Accounts) != 1 {
		errs = append(errs, fmt.Errorf("networks.%s.accounts must hold exactly one key", name))
	} else if network.Accounts[0] == "" {
		errs = append(errs, fmt.Errorf("networks.%s.accounts[0] is required", name))
	} else if _, err := crypto.HexToECDSA(strings.TrimPrefix(network.Accounts[0], "0x")); err != nil {
		errs = append(errs, fmt.Errorf("networks.%s.accounts[0] is not a valid private key", name))
	}

	if len(errs) > 0 {
		return fmt.Errorf("network configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateDeploy checks everything a deployment run needs besides module parameters.
func (c *Config) ValidateDeploy() error {
	var errs []error

	if c.Deploy.Network == "" {
		errs = append(errs, errors.New("deploy.network is required"))
	} else if err := c.ValidateNetwork(c.Deploy.Network); err != nil {
		errs = append(errs, err)
	}
	if err := c.Solidity.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Solidity.Profile(c.Deploy.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.Paths.Artifacts == "" {
		errs = append(errs, errors.New("paths.artifacts is required"))
	}
	if c.Paths.Deployments == "" {
		errs = append(errs, errors.New("paths.deployments is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("deploy configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
