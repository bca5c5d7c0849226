package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/logger"
	"github.com/slatehq/slate-server/internal/service"
)

// ReplayJournalIfNeeded reconciles owners left with unresolved index
// failures by a previous run. It is best-effort and only logs failures.
func ReplayJournalIfNeeded(ctx context.Context, i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	journalHandle := do.MustInvoke[*JournalHandle](i)

	pending, err := journalHandle.CountUnresolved(ctx)
	if err != nil {
		log.Warn("failed to count journal entries", "error", err)
		return
	}
	if pending == 0 {
		return
	}

	log.Info("replaying index sync journal", "unresolved", pending)

	reconciler := do.MustInvoke[*service.ReconcileService](i)
	reports, err := reconciler.ReplayJournal(ctx)
	if err != nil {
		log.Warn("journal replay incomplete", "error", err)
	}

	var resolved int64
	for _, r := range reports {
		resolved += r.Resolved
	}
	log.Info("journal replay finished", "owners", len(reports), "resolved", resolved)
}
