package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/motormint/marketclient/pkg/aggregator"
	"github.com/motormint/marketclient/pkg/orchestrator"
	"github.com/motormint/marketclient/pkg/session"
	"github.com/motormint/marketclient/pkg/types"
)

// ForSaleKey is the query key for the open marketplace listing in its
// default enumeration order. Sorted variants append ":" and the sort mode.
const ForSaleKey = "for-sale"

// ForSaleKeyWith returns the listing query key for a sort mode.
func ForSaleKeyWith(mode aggregator.SortMode) string {
	return ForSaleKey + ":" + string(mode)
}

// Stores bundles the three page-scoped view model stores — buyer listing,
// dealer inventory, vehicle detail — and wires them to the orchestrator's
// confirmation events so confirmed writes re-derive on-chain state instead
// of trusting the submitted values.
type Stores struct {
	ForSale   *Store[[]*types.VehicleRecord]
	Inventory *Store[[]*types.VehicleRecord]
	Detail    *Store[*types.VehicleRecord]

	session *session.Session
}

// NewStores builds the page stores over an aggregator. The inventory store
// is keyed by dealer address, the detail store by decimal token id. Passing
// a nil orchestrator skips confirmation wiring (read-only use).
func NewStores(agg *aggregator.Aggregator, sess *session.Session, orch *orchestrator.Orchestrator, logger *slog.Logger) *Stores {
	st := &Stores{
		ForSale: New(func(ctx context.Context, key string) ([]*types.VehicleRecord, error) {
			mode := aggregator.SortEnumeration
			if rest, ok := strings.CutPrefix(key, ForSaleKey+":"); ok {
				mode = aggregator.SortMode(rest)
			}
			return agg.ListForSale(ctx, mode)
		}, logger),
		Inventory: New(func(ctx context.Context, key string) ([]*types.VehicleRecord, error) {
			return agg.ListForDealer(ctx, key)
		}, logger),
		Detail: New(func(ctx context.Context, key string) (*types.VehicleRecord, error) {
			id, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid vehicle id %q: %w", key, err)
			}
			return agg.GetByID(ctx, id)
		}, logger),
		session: sess,
	}
	if orch != nil {
		orch.OnConfirmed(st.handleConfirmed)
	}
	return st
}

// handleConfirmed invalidates every query key a confirmed intent may have
// changed. The listing and inventory always re-derive; the detail store only
// for the touched token.
func (s *Stores) handleConfirmed(intent *orchestrator.Intent) {
	s.ForSale.InvalidateAll()
	if account, ok := s.session.Account(); ok {
		s.Inventory.Invalidate(account)
	}

	switch p := intent.Params.(type) {
	case types.ListCarParams:
		s.Detail.Invalidate(strconv.FormatUint(p.CarID, 10))
	case types.PurchaseCarParams:
		s.Detail.Invalidate(strconv.FormatUint(p.CarID, 10))
	}
}
