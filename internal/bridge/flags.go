package bridge

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}

	// commandFlags groups the flags of one command. Several commands share
	// viper keys, so flags are bound when the command runs, not at init.
	commandFlags struct {
		strings []flagDef[string]
		ints    []flagDef[int]
		bools   []flagDef[bool]
	}
)

var (
	networkFlag = flagDef[string]{"network", "deploy.network", "", "Network to deploy to (alfajores, sepolia or any configured network)"}
	profileFlag = flagDef[string]{"profile", "deploy.profile", "", "Solidity compiler profile (default or production)"}

	planFlags = commandFlags{
		strings: []flagDef[string]{
			{"parameters", "deploy.parameters-file", "", "JSON file with module parameter overrides"},
		},
	}

	compileFlags = commandFlags{
		strings: []flagDef[string]{
			profileFlag,
			{"sources", "paths.sources", "", "Directory holding the Solidity sources"},
			{"repository-url", "contracts-repository.url", "", "Clone the Solidity sources from this repository"},
			{"repository-branch", "contracts-repository.branch", "", "Branch or tag of the contracts repository"},
		},
	}

	deployFlags = commandFlags{
		strings: []flagDef[string]{
			networkFlag,
			profileFlag,
			{"parameters", "deploy.parameters-file", "", "JSON file with module parameter overrides"},
		},
		ints: []flagDef[int]{
			{"gas-limit", "deploy.gas-limit", 0, "Fixed gas limit per transaction (0 estimates)"},
		},
		bools: []flagDef[bool]{
			{"reset", "deploy.reset", false, "Wipe the deployment journal of the chain before deploying"},
			{"verify", "deploy.verify", false, "Verify the deployed contracts on the enabled block explorers"},
		},
	}

	verifyFlags = commandFlags{
		strings: []flagDef[string]{networkFlag},
	}
)

func (f commandFlags) declare(cmd *cobra.Command) {
	declareFlags(cmd, f.strings)
	declareFlags(cmd, f.ints)
	declareFlags(cmd, f.bools)
}

// bind points the viper keys at this command's flags. Only flags the user
// set are bound so config file values survive.
func (f commandFlags) bind(cmd *cobra.Command) error {
	if err := bindFlags(cmd, f.strings); err != nil {
		return err
	}
	if err := bindFlags(cmd, f.ints); err != nil {
		return err
	}
	return bindFlags(cmd, f.bools)
}

func declareFlags[T flagType](cmd *cobra.Command, flags []flagDef[T]) {
	for _, flag := range flags {
		declareFlag(cmd, flag.name, flag.defaultValue, flag.description)
	}
}

// declareFlag declares a single flag. The type parameter T determines the
// flag type (string, int, or bool).
func declareFlag[T flagType](cmd *cobra.Command, flagName string, defaultValue T, description string) {
	var zero T
	switch any(zero).(type) {
	case string:
		cmd.Flags().String(flagName, any(defaultValue).(string), description)
	case int:
		cmd.Flags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		cmd.Flags().Bool(flagName, any(defaultValue).(bool), description)
	}
}

func bindFlags[T flagType](cmd *cobra.Command, flags []flagDef[T]) error {
	for _, flag := range flags {
		pflag := cmd.Flags().Lookup(flag.name)
		if pflag == nil || !pflag.Changed {
			continue
		}
		if err := viper.BindPFlag(flag.viperKey, pflag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}
