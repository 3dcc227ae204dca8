package devnet

import (
	"fmt"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/infra/docker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	CMD = &cobra.Command{
		Use:   "devnet",
		Short: "Commands for the local anvil chain",
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the local anvil chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevnet(func(d *Devnet) error {
				status, err := d.Start(cmd.Context())
				if err != nil {
					return fmt.Errorf("error occurred starting devnet: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "devnet running at %s (chain %d)\n", status.URL, status.ChainID)
				return err
			})
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop and remove the local anvil chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevnet(func(d *Devnet) error {
				return d.Stop(cmd.Context())
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show whether the local anvil chain is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevnet(func(d *Devnet) error {
				status, err := d.Status(cmd.Context())
				if err != nil {
					return err
				}
				if !status.Running {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "devnet is not running")
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "devnet running at %s (chain %d, container %s)\n", status.URL, status.ChainID, status.ContainerID)
				return err
			})
		},
	}
)

func init() {
	CMD.AddCommand(startCmd)
	CMD.AddCommand(stopCmd)
	CMD.AddCommand(statusCmd)
}

func withDevnet(fn func(d *Devnet) error) error {
	// Re-unmarshal to include flag overrides.
	if err := viper.Unmarshal(&configs.Values); err != nil {
		return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
	}

	dockerClient, err := docker.New()
	if err != nil {
		return err
	}
	defer dockerClient.Close()

	return fn(New(dockerClient, configs.Values.Devnet))
}
