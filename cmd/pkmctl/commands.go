package main

import (
	"log"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// --- Global Command Variables ---
var (
	envFile      string
	actorID      int
	auditKey     string
	auditBatch   string
	auditActor   int
	auditLimit   int
	quorumFlag   int
	statusFilter string
	tokenRole    string
	tokenTTLHrs  int

	// db is the connection used by every subcommand; tests assign it directly.
	db     *gorm.DB
	openDB = config.OpenDB

	// newPhaseNotifier builds the mailer used by "phase set"; the command
	// waits up to notifyTimeout for it before exiting.
	newPhaseNotifier = services.NewMailPhaseNotifier
	notifyTimeout    = 30 * time.Second

	rootCmd = &cobra.Command{
		Use:   "pkmctl",
		Short: "Operator tool for the PKM review service",
		Long: `pkmctl manages the PKM review database: schema migration,
criteria seeding, phase toggles and the toggle audit trail.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if db != nil {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				log.Printf("No %s file found, using environment variables", envFile)
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			db = conn
			return nil
		},
	}

	// --- Schema / Data ---
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables and seed the CLOSED phase row",
		Args:  cobra.NoArgs,
		RunE:  runMigrate, // Defined in cmd_data.go
	}
	seedCriteriaCmd = &cobra.Command{
		Use:   "seed-criteria [file.yaml]",
		Short: "Upsert the administrative and substantive criteria catalog from YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeedCriteria, // Defined in cmd_data.go
	}
	assignCmd = &cobra.Command{
		Use:   "assign [proposal_id] [reviewer_id] [slot]",
		Short: "Place a reviewer on a proposal slot",
		Args:  cobra.ExactArgs(3),
		RunE:  runAssign, // Defined in cmd_data.go
	}
	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Count proposals per status",
		Args:  cobra.NoArgs,
		RunE:  runSummary, // Defined in cmd_data.go
	}
	previewCmd = &cobra.Command{
		Use:   "preview [proposal_id]",
		Short: "Show what closing review would decide for a proposal",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview, // Defined in cmd_data.go
	}

	// --- Phase ---
	phaseCmd = &cobra.Command{
		Use:   "phase",
		Short: "Inspect or change the review phase toggles",
	}
	phaseShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current phase and toggle values",
		Args:  cobra.NoArgs,
		RunE:  runPhaseShow, // Defined in cmd_phase.go
	}
	phaseSetCmd = &cobra.Command{
		Use:   "set [toggle] [on|off]",
		Short: "Apply a toggle change, running its cascades",
		Args:  cobra.ExactArgs(2),
		RunE:  runPhaseSet, // Defined in cmd_phase.go
	}

	// --- Audit ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Read the toggle audit trail",
	}
	auditListCmd = &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE:  runAuditList, // Defined in cmd_audit.go
	}

	// --- Tokens ---
	tokenCmd = &cobra.Command{
		Use:   "token [user_id]",
		Short: "Sign a bearer token with JWT_SECRET for local testing",
		Args:  cobra.ExactArgs(1),
		// Token signing needs no database.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				log.Printf("No %s file found, using environment variables", envFile)
			}
			return nil
		},
		RunE: runToken, // Defined in cmd_token.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before connecting")

	phaseSetCmd.Flags().IntVar(&actorID, "actor", 0, "user id recorded as the actor (required)")
	_ = phaseSetCmd.MarkFlagRequired("actor")

	auditListCmd.Flags().StringVar(&auditKey, "toggle", "", "only entries for this toggle")
	auditListCmd.Flags().StringVar(&auditBatch, "batch", "", "only entries of this batch id")
	auditListCmd.Flags().IntVar(&auditActor, "actor", 0, "only entries by this user id")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to print")

	summaryCmd.Flags().StringVar(&statusFilter, "status", "", "comma separated statuses to list (default all)")
	previewCmd.Flags().IntVar(&quorumFlag, "quorum", -1, "override REVIEW_QUORUM (0 = all assignments)")

	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "student, reviewer or admin")
	tokenCmd.Flags().IntVar(&tokenTTLHrs, "ttl-hours", 12, "token lifetime in hours")

	phaseCmd.AddCommand(phaseShowCmd, phaseSetCmd)
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(migrateCmd, seedCriteriaCmd, assignCmd, summaryCmd, previewCmd, phaseCmd, auditCmd, tokenCmd)
}
