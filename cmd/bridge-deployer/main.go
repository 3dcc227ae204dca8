package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/bridge"
	"github.com/compose-network/evm-bridge/internal/devnet"
	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "bridge-deployer"

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "CLI for compiling, deploying and verifying the cross-chain NFT bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Initialize(slog.LevelInfo, "json")

			if err := configs.LoadDefaults(viper.GetViper()); err != nil {
				return err
			}

			if configFile != "" {
				viper.SetConfigFile(configFile)
			} else {
				viper.SetConfigName("config")
				viper.SetConfigType("yaml")

				if execPath, err := os.Executable(); err == nil {
					viper.AddConfigPath(filepath.Dir(execPath))
				}
				viper.AddConfigPath(".")
				viper.AddConfigPath("./configs")
			}

			// A missing config file is fine, the embedded defaults and flags cover it.
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					slog.Debug("no config file found, will rely on flags and defaults")
				} else {
					const errMsg = "error reading config file"
					slog.With("err", err.Error()).Error(errMsg)
					return errors.Join(err, errors.New(errMsg))
				}
			} else {
				slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
			}

			if err := viper.Unmarshal(&configs.Values); err != nil {
				const errMsg = "unable to decode application config"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(configs.Values.Log.Level)); err != nil {
				level = slog.LevelInfo
			}
			logger.Initialize(level, configs.Values.Log.Format)

			slog.With("config_file", viper.ConfigFileUsed()).Debug("configuration loaded")

			return nil
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(bridge.PlanCmd)
	rootCmd.AddCommand(bridge.CompileCmd)
	rootCmd.AddCommand(bridge.DeployCmd)
	rootCmd.AddCommand(bridge.VerifyCmd)
	rootCmd.AddCommand(devnet.CMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
