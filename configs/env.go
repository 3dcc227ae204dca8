package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

const (
	EnvEtherscanAPIKey    = "ETHERSCAN_API_KEY"
	EnvAlfajoresRPCURL    = "ALFAJORES_RPC_URL"
	EnvSepoliaRPCURL      = "SEPOLIA_RPC_URL"
	EnvPrivateKey         = "PRIVATE_KEY"
	EnvSourceChainRelayer = "SOURCE_CHAIN_RELAYER"
	EnvCollectorAddress   = "COLLECTOR_ADDRESS"
	EnvTargetChainRelayer = "TARGET_CHAIN_RELAYER"
)

// KnownVariables lists every environment variable the deployer reads.
var KnownVariables = []string{
	EnvEtherscanAPIKey,
	EnvAlfajoresRPCURL,
	EnvSepoliaRPCURL,
	EnvPrivateKey,
	EnvSourceChainRelayer,
	EnvCollectorAddress,
	EnvTargetChainRelayer,
}

type (
	// Environment resolves deployment variables. Unset variables resolve to "".
	Environment interface {
		Get(name string) string
	}

	// MapEnvironment is an Environment backed by a plain map.
	MapEnvironment map[string]string

	viperEnvironment struct {
		v *viper.Viper
	}

	// MissingVariableError reports a required variable that resolved to "".
	MissingVariableError struct {
		Name string
	}
)

func (m MapEnvironment) Get(name string) string {
	return m[name]
}

func (e *viperEnvironment) Get(name string) string {
	return e.v.GetString(name)
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("%s is not defined in the environment variables", e.Name)
}

// LoadEnvironment reads the optional dotenv file at path and binds the known
// variables to the process environment. Process values win over the file.
func LoadEnvironment(path string) (Environment, error) {
	v := viper.New()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
			}
			slog.With("env_file", path).Debug("env file loaded")
		case errors.Is(err, fs.ErrNotExist):
			slog.With("env_file", path).Debug("no env file found, relying on process environment")
		default:
			return nil, fmt.Errorf("failed to stat env file %s: %w", path, err)
		}
	}

	for _, name := range KnownVariables {
		if err := v.BindEnv(name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	return &viperEnvironment{v: v}, nil
}

// Require resolves names in order and fails on the first one that is empty.
func Require(env Environment, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		value := env.Get(name)
		if value == "" {
			return nil, &MissingVariableError{Name: name}
		}
		values[name] = value
	}

	return values, nil
}
