package bridge

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/compose-network/evm-bridge/internal/ignition"
	"github.com/compose-network/evm-bridge/internal/verify"
	"github.com/olekukonko/tablewriter"
)

func renderPlan(w io.Writer, steps []ignition.Step) error {
	table := tablewriter.NewWriter(w)
	table.Header("Batch", "Future", "Kind", "Target", "Arguments")
	for _, step := range steps {
		if err := table.Append([]string{
			strconv.Itoa(step.Batch),
			step.ID,
			string(step.Kind),
			step.Target,
			step.Args,
		}); err != nil {
			return err
		}
	}

	return table.Render()
}

func renderDeployment(w io.Writer, report *DeployReport) error {
	result := report.Result
	if _, err := fmt.Fprintf(w, "network %s (chain %d), executed %d, skipped %d\n",
		report.Network, result.ChainID, result.Executed, result.Skipped); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Address")
	for _, name := range slices.Sorted(maps.Keys(result.Contracts)) {
		if err := table.Append([]string{name, result.Contracts[name].Hex()}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(report.Outcomes) == 0 {
		return nil
	}

	return renderOutcomes(w, report.Outcomes)
}

func renderOutcomes(w io.Writer, outcomes []verify.Outcome) error {
	table := tablewriter.NewWriter(w)
	table.Header("Explorer", "Future", "Address", "Result")
	for _, outcome := range outcomes {
		status := "verified"
		if outcome.Err != nil {
			status = outcome.Err.Error()
		}
		if err := table.Append([]string{
			string(outcome.Backend),
			outcome.FutureID,
			outcome.Address.Hex(),
			status,
		}); err != nil {
			return err
		}
	}

	return table.Render()
}
