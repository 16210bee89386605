package activity

import (
	"context"
	"fmt"

	"github.com/campuspantry/portal-sync/internal/api"
	"github.com/campuspantry/portal-sync/internal/model"
)

// OrderSource is the REST surface the sync needs.
type OrderSource interface {
	GetAllOrders(ctx context.Context, opts api.ListOrdersOptions) ([]model.Order, error)
}

// SyncFromServer backfills claim entries from the server's claimed orders.
// Orders that already have a claim entry in the trail keep it; for the rest a
// "claimed" entry is synthesized, timestamped with the order's claim time.
// Entries recorded live (order_released) are never downgraded.
func (s *Store) SyncFromServer(ctx context.Context, src OrderSource) error {
	s.mu.Lock()
	ident := s.ident
	s.mu.Unlock()
	if ident.IsZero() {
		return nil
	}

	claimed, err := src.GetAllOrders(ctx, api.ListOrdersOptions{
		StudentID:    ident.InternalID,
		StudentEmail: ident.Email,
		Status:       model.StatusClaimed,
	})
	if err != nil {
		return fmt.Errorf("fetching claimed orders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range claimed {
		if o.OrderNumber == "" || s.hasClaimEntryLocked(o.OrderNumber) {
			continue
		}
		s.recordLocked(model.Activity{
			Type:        model.ActivityClaimed,
			Timestamp:   o.ClaimedAt,
			OrderNumber: o.OrderNumber,
			OrderID:     o.ID,
			Items:       o.Items,
			Description: fmt.Sprintf("Order %s claimed", o.OrderNumber),
		})
	}
	return nil
}

func (s *Store) hasClaimEntryLocked(orderNumber string) bool {
	for _, a := range s.items {
		if a.Type.ClaimKind() && a.OrderNumber == orderNumber {
			return true
		}
	}
	return false
}
