package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	contextutils "evolveedu/internal/utils"

	"github.com/spf13/cobra"
)

// NotesCommands returns the offline note generation commands
func NotesCommands(cfg *config.Config, logger *observability.Logger, db *sql.DB) *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "Study note commands",
	}

	notesCmd.AddCommand(notesGenerateCmd(cfg, logger, db))
	return notesCmd
}

// notesGenerateCmd runs the full note generation pipeline against a local
// text file and prints the resulting note as JSON
func notesGenerateCmd(cfg *config.Config, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var filePath string
	var title string
	var learnerID string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate study notes from a local text file",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			source, err := os.ReadFile(filePath)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to read %s", filePath)
			}

			promptManager, err := services.NewPromptManager()
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to load prompt templates")
			}
			client := inference.NewClient(cfg.Inference, logger)
			notesService := services.NewNotesService(db, cfg, client, promptManager, logger)

			note, err := notesService.GenerateStudyNotes(ctx, learnerID, &models.CreateNoteRequest{
				Title:      title,
				SourceType: models.SourceTypeText,
				SourceText: string(source),
			})
			if err != nil {
				logger.Error(ctx, "Note generation failed", err, map[string]interface{}{"file": filePath})
				return contextutils.WrapErrorf(err, "note generation failed")
			}

			out, err := json.MarshalIndent(note, "", "  ")
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to marshal note")
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Path to the source text file")
	cmd.Flags().StringVar(&title, "title", "", "Title for the generated note")
	cmd.Flags().StringVar(&learnerID, "learner", "adm-cli", "Learner ID to record the note under")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}
