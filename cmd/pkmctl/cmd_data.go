package main

import (
	"fmt"
	"os"
	"strconv"

	"pkm-review-api/services"
	"pkm-review-api/utils"

	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := services.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema migrated.")
	return nil
}

func runSeedCriteria(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := services.NewCriteriaCatalog(db).SeedFromYAML(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d PKM types: %d administrative, %d substantive criteria.\n",
		summary.PkmTypes, summary.Administrative, summary.Substantive)
	return nil
}

func runAssign(cmd *cobra.Command, args []string) error {
	ids := make([]int, len(args))
	for i, raw := range args {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("argument %d: %q is not a number", i+1, raw)
		}
		ids[i] = n
	}
	a, err := services.NewAssignmentService(db).Assign(cmd.Context(), ids[0], ids[1], ids[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Assignment %d: reviewer %d on proposal %d slot %d\n",
		a.AssignmentID, a.ReviewerID, a.ProposalID, a.SlotNumber)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	statuses, err := utils.ParseStatusList(statusFilter)
	if err != nil {
		return err
	}
	counts, err := services.NewProposalService(db).StatusSummary(cmd.Context(), statuses...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range counts {
		fmt.Fprintf(out, "%-16s %d\n", c.Status, c.Count)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%q is not a proposal id", args[0])
	}
	proposal, err := services.NewProposalService(db).Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	agg := services.NewReviewAggregator(db)
	if quorumFlag >= 0 {
		agg = agg.WithQuorum(quorumFlag)
	}
	f, err := agg.FinalizeProposal(cmd.Context(), proposal)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	score := "-"
	if f.Score.Valid {
		score = f.Score.Decimal.StringFixed(2)
	}
	fmt.Fprintf(out, "Proposal %d (%s) -> %s, score %s (%d/%d complete)\n",
		f.ProposalID, proposal.Status, f.Status, score, f.CompleteCount, f.Required)
	for _, a := range f.Assignments {
		fmt.Fprintf(out, "  slot %d reviewer %d: admin=%t substantive=%t errors=%d score=%s\n",
			a.SlotNumber, a.ReviewerID, a.AdministrativeComplete, a.SubstantiveComplete, a.AdminErrors, a.SubstantiveScore.StringFixed(2))
	}
	return nil
}
