package bridge

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	"github.com/compose-network/evm-bridge/internal/modules"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PlanCmd = &cobra.Command{
		Use:   "plan <module>...",
		Short: "Show the execution batches of deployment modules",
		Long:  fmt.Sprintf("Builds the deployment modules and prints their futures in execution order. Known modules: %v", modules.Names()),
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return planFlags.bind(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService()
			if err != nil {
				return err
			}

			plan, err := service.BuildPlan(args)
			if err != nil {
				return err
			}

			return renderPlan(cmd.OutOrStdout(), plan.Steps())
		},
	}

	CompileCmd = &cobra.Command{
		Use:   "compile",
		Short: "Compile the bridge contracts with solc in docker",
		Long:  "Compiles the Solidity sources and writes contracts.json and build-info.json to the artifacts directory",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return compileFlags.bind(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("running contract compilation command")

			service, err := loadService()
			if err != nil {
				return err
			}

			dockerClient, err := docker.New()
			if err != nil {
				return err
			}
			defer dockerClient.Close()

			if _, err := service.Compile(cmd.Context(), dockerClient); err != nil {
				return err
			}

			return nil
		},
	}

	DeployCmd = &cobra.Command{
		Use:   "deploy <module>...",
		Short: "Deploy modules to a network, resuming from the journal",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return deployFlags.bind(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService()
			if err != nil {
				return err
			}

			report, err := service.Deploy(cmd.Context(), args)
			if report != nil {
				if renderErr := renderDeployment(cmd.OutOrStdout(), report); renderErr != nil {
					slog.With("err", renderErr.Error()).Warn("failed to render deployment summary")
				}
			}
			if err != nil {
				return err
			}

			slog.Info("deployment completed successfully")

			return nil
		},
	}

	VerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify deployed contracts on the enabled block explorers",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return verifyFlags.bind(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService()
			if err != nil {
				return err
			}

			outcomes, err := service.Verify(cmd.Context())
			if len(outcomes) > 0 {
				if renderErr := renderOutcomes(cmd.OutOrStdout(), outcomes); renderErr != nil {
					slog.With("err", renderErr.Error()).Warn("failed to render verification summary")
				}
			}

			return err
		},
	}
)

func init() {
	planFlags.declare(PlanCmd)
	compileFlags.declare(CompileCmd)
	deployFlags.declare(DeployCmd)
	verifyFlags.declare(VerifyCmd)
}

func loadService() (*Service, error) {
	// Re-unmarshal to include flag overrides.
	env, err := configs.Reload(viper.GetViper())
	if err != nil {
		return nil, err
	}

	return NewService(&configs.Values, env), nil
}
