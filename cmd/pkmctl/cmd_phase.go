package main

import (
	"fmt"
	"io"
	"log"

	"pkm-review-api/models"
	"pkm-review-api/services"
	"pkm-review-api/utils"

	"github.com/spf13/cobra"
)

func runPhaseShow(cmd *cobra.Command, args []string) error {
	row, toggles, err := services.NewPhaseController(db).CurrentPhase(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Phase: %s (version %d)\n", row.CurrentPhase, row.Version)
	printToggles(out, toggles)
	return nil
}

func runPhaseSet(cmd *cobra.Command, args []string) error {
	key, known := utils.NormalizeToggleKey(args[0])
	if !known {
		return services.UnknownToggle(args[0])
	}
	value, err := utils.ParseSwitch(args[1])
	if err != nil {
		return err
	}
	if actorID <= 0 {
		return fmt.Errorf("--actor must be a positive user id")
	}

	notifier := newPhaseNotifier()
	result, err := services.NewPhaseController(db).WithNotifier(notifier).ApplyToggle(cmd.Context(), key, value, actorID)
	if !notifier.Wait(notifyTimeout) {
		log.Printf("phase notification still sending after %s, giving up", notifyTimeout)
	}
	out := cmd.OutOrStdout()
	if result != nil {
		if !result.Changed {
			fmt.Fprintf(out, "No change: %s already %t (phase %s)\n", key, value, result.Phase)
		} else {
			fmt.Fprintf(out, "Batch %s: phase is now %s, %d proposals moved\n", result.BatchID, result.Phase, result.AffectedCount)
			for _, f := range result.Flips {
				fmt.Fprintf(out, "  %s: %t -> %t\n", f.Key, f.Previous, f.New)
			}
			for _, fail := range result.Failures {
				fmt.Fprintf(out, "  FAILED %s proposal %d: %s\n", fail.Rule, fail.ProposalID, fail.Error)
			}
		}
	}
	return err
}

func printToggles(out io.Writer, toggles map[models.ToggleKey]bool) {
	for _, key := range models.ToggleKeys {
		fmt.Fprintf(out, "  %-22s %t\n", key, toggles[key])
	}
}
