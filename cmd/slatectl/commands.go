package main

import (
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/slatehq/slate-server/internal/di/providers"
	"github.com/slatehq/slate-server/internal/domain"
	"github.com/slatehq/slate-server/internal/service"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <owner-id>",
	Short: "Bring one owner's index entries back in line with the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(injector *do.RootScope) error {
			reconciler := do.MustInvoke[*service.ReconcileService](injector)

			report, err := reconciler.ReconcileOwner(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reconciling %s: %w", args[0], err)
			}
			printReport(report)
			return nil
		})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Drop the search index and rebuild it from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(injector *do.RootScope) error {
			reconciler := do.MustInvoke[*service.ReconcileService](injector)

			reports, err := reconciler.RebuildAll(cmd.Context())
			for _, r := range reports {
				printReport(r)
			}
			if err != nil {
				return fmt.Errorf("rebuilding index: %w", err)
			}
			fmt.Printf("Rebuilt index for %d owner(s).\n", len(reports))
			return nil
		})
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect failed index calls",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withContainer(func(injector *do.RootScope) error {
			journalHandle := do.MustInvoke[*providers.JournalHandle](injector)

			entries, err := journalHandle.ListUnresolved(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing journal: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No unresolved entries.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-10s %-10s %-6s %-3d %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.OwnerID, e.Target, e.Op, len(e.IDs), e.Error)
			}
			return nil
		})
	},
}

var journalReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Reconcile every owner with unresolved entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(injector *do.RootScope) error {
			reconciler := do.MustInvoke[*service.ReconcileService](injector)

			reports, err := reconciler.ReplayJournal(cmd.Context())
			for _, r := range reports {
				printReport(r)
			}
			if err != nil {
				return fmt.Errorf("replaying journal: %w", err)
			}
			if len(reports) == 0 {
				fmt.Println("Nothing to replay.")
			}
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo library with one public and one private collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		count, _ := cmd.Flags().GetInt("files")
		if count < 2 {
			return fmt.Errorf("--files must be at least 2")
		}

		return withContainer(func(injector *do.RootScope) error {
			ctx := cmd.Context()
			library := do.MustInvoke[*service.LibraryService](injector)
			collections := do.MustInvoke[*service.CollectionService](injector)

			public, err := library.CreateCollection(ctx, owner, "Field Notes", "Shared notes from the field.")
			if err != nil {
				return fmt.Errorf("creating collection: %w", err)
			}
			private, err := library.CreateCollection(ctx, owner, "Drafts", "")
			if err != nil {
				return fmt.Errorf("creating collection: %w", err)
			}

			for n := range count {
				f, err := library.CreateFile(ctx, owner, fmt.Sprintf("note-%02d.md", n+1), fmt.Sprintf("bafy-demo-%02d", n+1), n == 0)
				if err != nil {
					return fmt.Errorf("creating file: %w", err)
				}
				target := public
				if n%2 == 1 {
					target = private
				}
				if err := library.AddFile(ctx, owner, target.ID, f.ID); err != nil {
					return fmt.Errorf("adding file: %w", err)
				}
			}

			published := true
			if _, err := collections.UpdateCollection(ctx, owner, public.ID, domain.CollectionPatch{IsPublic: &published}); err != nil {
				return fmt.Errorf("publishing collection: %w", err)
			}

			fmt.Printf("Seeded owner %s: public %s (%s), private %s (%s)\n", owner, public.ID, public.Slug, private.ID, private.Slug)
			return nil
		})
	},
}

func printReport(r *service.ReconcileReport) {
	fmt.Printf("owner %s\n", r.OwnerID)
	fmt.Printf("  files added:          %s\n", joinOrDash(r.FilesAdded))
	fmt.Printf("  files removed:        %s\n", joinOrDash(r.FilesRemoved))
	fmt.Printf("  collections added:    %s\n", joinOrDash(r.CollectionsAdded))
	fmt.Printf("  collections removed:  %s\n", joinOrDash(r.CollectionsRemoved))
	fmt.Printf("  collections refreshed: %d\n", r.CollectionsRefreshed)
	fmt.Printf("  failed calls:         %d\n", r.Failed)
	fmt.Printf("  journal resolved:     %d\n", r.Resolved)
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
