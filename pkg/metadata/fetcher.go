package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/motormint/marketclient/pkg/constants"
	"github.com/motormint/marketclient/pkg/types"
)

// MetadataError reports a missing or malformed off-chain document. Never
// fatal: the caller keeps the on-chain record and renders a stub.
type MetadataError struct {
	URI string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata unavailable for %s: %v", e.URI, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the off-chain metadata document referenced by a token
// URI. The target is untrusted; every failure mode degrades to a
// *MetadataError instead of failing the surrounding query.
type Fetcher struct {
	client  *http.Client
	gateway string
	logger  *slog.Logger
}

// NewFetcher creates a fetcher with bounded timeouts and the default IPFS
// gateway.
func NewFetcher(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:  newHTTPClient(),
		gateway: constants.DefaultIPFSGateway,
		logger:  logger,
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: constants.MetadataFetchTimeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
			ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
			ExpectContinueTimeout: constants.ExpectContinueTimeout,
		},
	}
}

// Fetch performs a single attempt; there is no retry policy here, callers
// re-trigger via explicit refresh. Unknown JSON fields are ignored; a
// document missing image or description is treated as unavailable.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*types.VehicleMetadata, error) {
	target := f.resolveURI(uri)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &MetadataError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &MetadataError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &MetadataError{URI: uri, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	limited := io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize))
	var doc types.VehicleMetadata
	if err := json.NewDecoder(limited).Decode(&doc); err != nil {
		return nil, &MetadataError{URI: uri, Err: fmt.Errorf("malformed document: %w", err)}
	}

	if doc.Image == "" || doc.Description == "" {
		return nil, &MetadataError{URI: uri, Err: errors.New("document missing image or description")}
	}

	return &doc, nil
}

// resolveURI rewrites ipfs:// references to the configured HTTP gateway.
func (f *Fetcher) resolveURI(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return f.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}
