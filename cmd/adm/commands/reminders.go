package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	contextutils "evolveedu/internal/utils"

	"github.com/spf13/cobra"
)

// ReminderCommands returns the milestone reminder commands
func ReminderCommands(cfg *config.Config, logger *observability.Logger, db *sql.DB) *cobra.Command {
	remindersCmd := &cobra.Command{
		Use:   "reminders",
		Short: "Milestone reminder commands",
	}

	remindersCmd.AddCommand(remindersSendCmd(cfg, logger, db))
	return remindersCmd
}

// remindersSendCmd performs one reminder pass without the worker loop: find
// due milestones, send each email, flag the milestone.
func remindersSendCmd(cfg *config.Config, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var windowHours int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send due milestone reminders once",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			if windowHours <= 0 {
				windowHours = cfg.Email.MilestoneReminder.WindowHours
			}
			window := time.Duration(windowHours) * time.Hour

			reminderService := services.NewReminderService(db, logger)
			emailService := services.CreateEmailService(cfg, logger)

			reminders, err := reminderService.ListDueMilestoneReminders(ctx, window)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to list due reminders")
			}

			if len(reminders) == 0 {
				fmt.Println("No milestone reminders due")
				return nil
			}

			if dryRun {
				for i := range reminders {
					r := &reminders[i]
					fmt.Printf("would send: %q (roadmap %q) -> %s\n", r.Milestone.Title, r.Roadmap.Title, r.Email)
				}
				return nil
			}

			sent := 0
			failed := 0
			for i := range reminders {
				r := &reminders[i]
				if err := emailService.SendMilestoneReminder(ctx, r.Email, &r.Roadmap, &r.Milestone); err != nil {
					failed++
					logger.Error(ctx, "Failed to send milestone reminder", err, map[string]interface{}{
						"milestone_id": r.Milestone.ID,
						"email":        r.Email,
					})
					continue
				}
				if err := reminderService.MarkReminderSent(ctx, r.Milestone.ID); err != nil {
					logger.Error(ctx, "Failed to mark reminder sent", err, map[string]interface{}{
						"milestone_id": r.Milestone.ID,
					})
				}
				sent++
			}

			fmt.Printf("Sent %d of %d due milestone reminders\n", sent, len(reminders))
			if failed > 0 {
				return contextutils.ErrorWithContextf("%d reminders failed to send", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&windowHours, "window-hours", 0, "Due window in hours (default: configured reminder window)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List due reminders without sending")
	return cmd
}
