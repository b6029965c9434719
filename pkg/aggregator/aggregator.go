package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/motormint/marketclient/pkg/constants"
	"github.com/motormint/marketclient/pkg/types"
)

// SortMode orders for-sale listings.
type SortMode string

const (
	// SortEnumeration keeps the on-chain enumeration order.
	SortEnumeration SortMode = "enumeration"
	// SortNewest is the enumeration order reversed.
	SortNewest SortMode = "newest"
	// SortPriceAsc sorts by price, ties broken by id ascending. Stable.
	SortPriceAsc SortMode = "price-asc"
)

// ChainReader is the read-only contract surface the aggregator consumes.
// *chain.Reader implements it.
type ChainReader interface {
	CarsForSale(ctx context.Context) ([]*types.VehicleRecord, error)
	CarsByDealer(ctx context.Context, dealer string) ([]*types.VehicleRecord, error)
	CarDetails(ctx context.Context, id uint64) (*types.VehicleRecord, error)
	OwnershipHistory(ctx context.Context, id uint64) ([]*types.OwnershipEvent, error)
	TokenURI(ctx context.Context, id uint64) (string, error)
}

// MetadataFetcher resolves one off-chain document. *metadata.Fetcher
// implements it.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*types.VehicleMetadata, error)
}

// Aggregator merges authoritative on-chain records with their off-chain
// metadata documents. On-chain fields always win; metadata is a cached,
// untrusted annotation that is attached when available and omitted when not.
type Aggregator struct {
	reader  ChainReader
	fetcher MetadataFetcher
	logger  *slog.Logger

	// Metadata documents are fetched once per token and kept for the
	// session; InvalidateMetadata forces a re-fetch on explicit refresh.
	mu    sync.Mutex
	cache map[uint64]*types.VehicleMetadata
}

// New creates an aggregator over the given reader and fetcher.
func New(reader ChainReader, fetcher MetadataFetcher, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		reader:  reader,
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[uint64]*types.VehicleMetadata),
	}
}

// ListForDealer returns the dealer's inventory in on-chain enumeration
// order, one record per identifier, metadata attached where available.
func (a *Aggregator) ListForDealer(ctx context.Context, dealer string) ([]*types.VehicleRecord, error) {
	cars, err := a.reader.CarsByDealer(ctx, dealer)
	if err != nil {
		return nil, err
	}
	a.attachMetadata(ctx, cars)
	return cars, nil
}

// ListForSale returns every listed record, ordered by mode.
func (a *Aggregator) ListForSale(ctx context.Context, mode SortMode) ([]*types.VehicleRecord, error) {
	cars, err := a.reader.CarsForSale(ctx)
	if err != nil {
		return nil, err
	}
	a.attachMetadata(ctx, cars)
	sortRecords(cars, mode)
	return cars, nil
}

// GetByID returns a single merged record. A metadata failure degrades the
// record to metadata-absent rather than failing the lookup.
func (a *Aggregator) GetByID(ctx context.Context, id uint64) (*types.VehicleRecord, error) {
	car, err := a.reader.CarDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	a.attachMetadata(ctx, []*types.VehicleRecord{car})
	return car, nil
}

// GetOwnershipHistory returns the transfer history in occurrence order. The
// sequence is checked against the invariants (chronologically monotonic,
// latest recipient matches the current owner); divergence is logged, not
// fatal, since the chain remains authoritative either way.
func (a *Aggregator) GetOwnershipHistory(ctx context.Context, id uint64) ([]*types.OwnershipEvent, error) {
	events, err := a.reader.OwnershipHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if car, detailErr := a.reader.CarDetails(ctx, id); detailErr == nil {
		a.checkHistory(id, events, car.Owner)
	}
	return events, nil
}

// InvalidateMetadata drops cached documents so the next aggregation
// re-fetches them. With no arguments the whole cache is dropped.
func (a *Aggregator) InvalidateMetadata(ids ...uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(ids) == 0 {
		a.cache = make(map[uint64]*types.VehicleMetadata)
		return
	}
	for _, id := range ids {
		delete(a.cache, id)
	}
}

// attachMetadata resolves each record's token URI and document concurrently.
// The merge is keyed by position, so the batch order stays aligned with the
// on-chain enumeration regardless of fetch completion order, and a failed
// fetch degrades only its own record.
func (a *Aggregator) attachMetadata(ctx context.Context, cars []*types.VehicleRecord) {
	g := new(errgroup.Group)
	g.SetLimit(constants.MetadataFanOutLimit)
	for _, car := range cars {
		car := car
		g.Go(func() error {
			a.hydrate(ctx, car)
			return nil
		})
	}
	g.Wait()
}

func (a *Aggregator) hydrate(ctx context.Context, car *types.VehicleRecord) {
	if doc, ok := a.cached(car.ID); ok {
		car.Metadata = doc
		return
	}

	uri := car.TokenURI
	if uri == "" {
		resolved, err := a.reader.TokenURI(ctx, car.ID)
		if err != nil {
			a.logger.Warn("token URI lookup failed", "id", car.ID, "error", err)
			return
		}
		uri = resolved
		car.TokenURI = uri
	}

	doc, err := a.fetcher.Fetch(ctx, uri)
	if err != nil {
		a.logger.Warn("metadata unavailable", "id", car.ID, "uri", uri, "error", err)
		return
	}

	car.Metadata = doc
	a.store(car.ID, doc)
}

func (a *Aggregator) cached(id uint64) (*types.VehicleMetadata, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc, ok := a.cache[id]
	return doc, ok
}

func (a *Aggregator) store(id uint64, doc *types.VehicleMetadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[id] = doc
}

func (a *Aggregator) checkHistory(id uint64, events []*types.OwnershipEvent, owner string) {
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			a.logger.Warn("ownership history out of order", "id", id, "index", i)
			return
		}
	}
	if len(events) > 0 && !strings.EqualFold(events[len(events)-1].To, owner) {
		a.logger.Warn("ownership history diverges from current owner",
			"id", id, "owner", owner, "lastTransferTo", events[len(events)-1].To)
	}
}

func sortRecords(cars []*types.VehicleRecord, mode SortMode) {
	switch mode {
	case SortNewest:
		for i, j := 0, len(cars)-1; i < j; i, j = i+1, j-1 {
			cars[i], cars[j] = cars[j], cars[i]
		}
	case SortPriceAsc:
		sort.SliceStable(cars, func(i, j int) bool {
			if c := cars[i].Price.Cmp(cars[j].Price); c != 0 {
				return c < 0
			}
			return cars[i].ID < cars[j].ID
		})
	}
}
