package ports

import (
	"context"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

// QueueService defines the operations available to the kiosk, the operator
// console and the public displays.
type QueueService interface {
	IssueTicket(ctx context.Context, category domain.Category) (domain.Ticket, error)
	CallNext(ctx context.Context, screeningLabel string) (domain.CallEntry, error)
	Recall(ctx context.Context, screeningLabel string) (domain.CallEntry, error)
	Reset(ctx context.Context)
	Snapshot(ctx context.Context) domain.StatsSnapshot
	Shutdown()
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
