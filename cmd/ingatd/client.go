package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

var (
	ingestProject  string
	ingestIDE      string
	ingestFilePath string
	ingestLanguage string
	ingestSummary  string
	ingestBody     string
	ingestTags     []string
	ingestKind     string
	ingestLabel    string

	searchProject string
	searchTag     string
	searchKind    string
	searchIDE     string
	searchLimit   int

	recentProject string
	recentLimit   int

	backendModel string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project name (required)")
	ingestCmd.Flags().StringVar(&ingestIDE, "ide", "", "originating tool, e.g. vscode (required)")
	ingestCmd.Flags().StringVar(&ingestFilePath, "file", "", "source file path")
	ingestCmd.Flags().StringVar(&ingestLanguage, "language", "", "source language")
	ingestCmd.Flags().StringVar(&ingestSummary, "summary", "", "short summary (required)")
	ingestCmd.Flags().StringVar(&ingestBody, "body", "", "full body; - reads stdin")
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tag", nil, "tag (repeatable)")
	ingestCmd.Flags().StringVar(&ingestKind, "kind", string(domain.KindDiscussion), "record kind")
	ingestCmd.Flags().StringVar(&ingestLabel, "label", "", "label for kind=other")

	searchCmd.Flags().StringVar(&searchProject, "project", "", "restrict to project")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "restrict to tag")
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "restrict to kind")
	searchCmd.Flags().StringVar(&searchIDE, "ide", "", "restrict to originating tool")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default 8, max 50)")

	recentCmd.Flags().StringVar(&recentProject, "project", "", "restrict to project")
	recentCmd.Flags().IntVar(&recentLimit, "limit", 0, "max entries (default 8, max 50)")

	backendsCmd.Flags().StringVar(&backendModel, "model", "", "model override when switching")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health, stats, and which mode this client resolved to",
	RunE:  runStatus,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Capture a context record",
	Long: `Capture a context record. The record is embedded synchronously and is
searchable as soon as the command succeeds.

Examples:
  ingatd ingest --project demo --ide vscode --summary "retry helper" --body "..." --tag http --tag retry
  cat notes.md | ingatd ingest --project demo --ide zed --summary "design notes" --body -`,
	RunE: runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <prompt>",
	Short: "Semantically search stored context records",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent context records",
	RunE:  runRecent,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List distinct project names",
	RunE:  runProjects,
}

var backendsCmd = &cobra.Command{
	Use:   "backends [backend-id]",
	Short: "List embedding backends, or switch the active one",
	Long: `Without arguments, list the selectable embedding backends. With a backend
id, switch the active backend. Existing records keep their embeddings; records
embedded under a different dimensionality drop out of search results until
re-ingested.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackends,
}

// resolveBackend performs the per-process mode decision for CLI commands.
func resolveBackend(cmd *cobra.Command) (backend.Backend, backend.Mode, func(), error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, "", nil, err
	}

	b, mode, err := backend.Resolve(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, "", nil, err
	}

	cleanup := func() {
		_ = b.Close()
		_ = logger.Sync()
	}
	return b, mode, cleanup, nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	b, mode, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := b.Health(cmd.Context())
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"mode":   mode,
		"health": status,
	})
}

func runIngest(cmd *cobra.Command, _ []string) error {
	body := ingestBody
	if body == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read body from stdin: %w", err)
		}
		body = string(raw)
	}

	b, _, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := b.Ingest(cmd.Context(), backend.IngestRequest{
		Project:  ingestProject,
		IDE:      ingestIDE,
		FilePath: ingestFilePath,
		Language: ingestLanguage,
		Summary:  ingestSummary,
		Body:     body,
		Tags:     ingestTags,
		Kind:     domain.ContextKind{Kind: domain.Kind(ingestKind), Label: ingestLabel},
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), summary)
}

func runSearch(cmd *cobra.Command, args []string) error {
	b, _, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filters := domain.QueryFilters{
		Project: searchProject,
		Tag:     searchTag,
		IDE:     searchIDE,
	}
	if searchKind != "" {
		filters.Kind = &domain.ContextKind{Kind: domain.Kind(searchKind)}
	}

	resp, err := b.Search(cmd.Context(), backend.SearchRequest{
		Prompt:  strings.Join(args, " "),
		Filters: filters,
		Limit:   searchLimit,
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), resp)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	b, _, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := b.Recent(cmd.Context(), recentLimit, recentProject)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), list)
}

func runProjects(cmd *cobra.Command, _ []string) error {
	b, _, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	projects, err := b.Projects(cmd.Context())
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), projects)
}

func runBackends(cmd *cobra.Command, args []string) error {
	b, _, cleanup, err := resolveBackend(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var list *backend.BackendList
	if len(args) == 0 {
		list, err = b.Backends(cmd.Context())
	} else {
		list, err = b.SetBackend(cmd.Context(), backend.SetBackendRequest{
			BackendID:     args[0],
			ModelOverride: backendModel,
		})
	}
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), list)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
