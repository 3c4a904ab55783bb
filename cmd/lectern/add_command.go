package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		category     string
		body         string
		bodyFile     string
		sourceRef    string
		externalURL  string
		format       string
		duration     float64
		byteSize     int64
		pageCount    int
		codeLanguage string
		altText      string
		transcript   string
		hasCaptions  bool
		description  string
		language     string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Register a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, ok := content.ParseCategory(category)
			if !ok {
				return fmt.Errorf("unknown category %q (one of: %s)", category, categoryNames())
			}
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body file: %w", err)
				}
				body = string(data)
			}

			item := &content.Item{
				Title:           args[0],
				Category:        cat,
				Body:            body,
				SourceRef:       sourceRef,
				ExternalURL:     externalURL,
				Format:          content.TextFormat(strings.ToLower(strings.TrimSpace(format))),
				DurationSeconds: duration,
				ByteSize:        byteSize,
				PageCount:       pageCount,
				CodeLanguage:    codeLanguage,
				AltText:         altText,
				Transcript:      transcript,
				HasCaptions:     hasCaptions,
				Description:     description,
				Language:        language,
			}

			return ctx.withEngine(func(engine *api.Engine) error {
				stored, warnings, err := engine.AddItem(cmd.Context(), item)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, warning := range warnings {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				fmt.Fprintf(out, "Added %s (%s) as %s\n", stored.Title, stored.Category, stored.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "text", "Content category")
	cmd.Flags().StringVar(&body, "body", "", "Inline text body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the text body from a file")
	cmd.Flags().StringVar(&sourceRef, "source", "", "Source file reference")
	cmd.Flags().StringVar(&externalURL, "url", "", "External URL")
	cmd.Flags().StringVar(&format, "format", "plain", "Text format (plain, markdown, html)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in seconds for audio/video")
	cmd.Flags().Int64Var(&byteSize, "size", 0, "Raw payload size in bytes")
	cmd.Flags().IntVar(&pageCount, "pages", 0, "Page count for documents")
	cmd.Flags().StringVar(&codeLanguage, "code-language", "", "Programming language for code exercises")
	cmd.Flags().StringVar(&altText, "alt", "", "Alt text for images")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript for audio/video")
	cmd.Flags().BoolVar(&hasCaptions, "captions", false, "Source carries captions")
	cmd.Flags().StringVar(&description, "description", "", "Short description")
	cmd.Flags().StringVar(&language, "language", "", "Content language tag")

	return cmd
}

func categoryNames() string {
	categories := content.AllCategories()
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, string(cat))
	}
	return strings.Join(names, ", ")
}
