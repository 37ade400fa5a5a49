package main

import (
	"fmt"
	"time"

	"pkm-review-api/services"
	"pkm-review-api/utils"

	"github.com/spf13/cobra"
)

func runAuditList(cmd *cobra.Command, args []string) error {
	filter := services.AuditFilter{ActorID: auditActor, BatchID: auditBatch}
	if auditKey != "" {
		key, known := utils.NormalizeToggleKey(auditKey)
		if !known {
			return services.UnknownToggle(auditKey)
		}
		filter.ToggleKey = key
	}

	entries, err := services.NewAuditLogService(db).Query(cmd.Context(), filter, auditLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%6d %s %-36s %-22s %t -> %t by %d\n",
			e.AuditID, e.CreatedAt.Format(time.RFC3339), e.BatchID, e.ToggleKey, e.PreviousValue, e.NewValue, e.ActorID)
	}
	return nil
}
