package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// Reload decodes v, including flag overrides bound after start up, into
// Values and overlays the environment read from Values.Paths.EnvFile.
func Reload(v *viper.Viper) (Environment, error) {
	if err := v.Unmarshal(&Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
	}

	env, err := LoadEnvironment(Values.Paths.EnvFile)
	if err != nil {
		return nil, err
	}
	Values.ApplyEnvironment(env)

	return env, nil
}
