package types

import (
	"math/big"
	"time"
)

// VehicleRecord is the merged view of one tokenized vehicle: on-chain fields
// copied verbatim from the marketplace contract, plus the off-chain metadata
// document when it could be fetched. On-chain fields are authoritative and
// always win over metadata on conflict.
type VehicleRecord struct {
	ID      uint64   `json:"id"`
	Make    string   `json:"make"`
	Model   string   `json:"model"`
	Year    uint16   `json:"year"`
	VIN     string   `json:"vin"`
	Price   *big.Int `json:"price"` // wei
	ForSale bool     `json:"forSale"`
	Owner   string   `json:"ownerAddress"`

	// TokenURI points at the off-chain metadata document. Set at mint time.
	TokenURI string `json:"tokenURI,omitempty"`

	// Metadata is an untrusted, lazily-populated annotation. Nil when the
	// document could not be fetched; the record is still valid without it.
	Metadata *VehicleMetadata `json:"metadata,omitempty"`
}

// HasMetadata reports whether the off-chain document was attached.
func (r *VehicleRecord) HasMetadata() bool {
	return r.Metadata != nil
}

// ImageURL returns the metadata image reference, or "" when metadata is
// absent so callers can render a stub.
func (r *VehicleRecord) ImageURL() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Image
}

// VehicleMetadata is the off-chain JSON document referenced by a token URI.
// Unknown fields are ignored on decode.
type VehicleMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Attribute is one trait/value pair from the metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// OwnershipEvent is one immutable entry in a vehicle's transfer history,
// ordered by occurrence.
type OwnershipEvent struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Price     *big.Int  `json:"price"` // wei
}

// IntentKind names a user-initiated marketplace write.
type IntentKind string

const (
	IntentRegister IntentKind = "register"
	IntentMint     IntentKind = "mint"
	IntentList     IntentKind = "list"
	IntentPurchase IntentKind = "purchase"
)

// IntentStatus is one state in the transaction intent lifecycle.
type IntentStatus string

const (
	StatusIdle      IntentStatus = "idle"
	StatusSubmitted IntentStatus = "submitted"
	StatusPending   IntentStatus = "pending"
	StatusConfirmed IntentStatus = "confirmed"
	StatusFailed    IntentStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s IntentStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// RegisterDealerParams carries the registerDealer call inputs. Fee is the
// registration fee quote attached as call value; it must be loaded before
// submission.
type RegisterDealerParams struct {
	Name  string
	Email string
	Fee   *big.Int
}

// MintCarParams carries the mintCar call inputs.
type MintCarParams struct {
	Make     string
	Model    string
	Year     uint16
	VIN      string
	Price    *big.Int
	TokenURI string
}

// ListCarParams carries the listCar call inputs.
type ListCarParams struct {
	CarID uint64
	Price *big.Int
}

// PurchaseCarParams carries the buyCar call inputs. Price is the listed
// price quote attached as call value; it must be loaded before submission.
type PurchaseCarParams struct {
	CarID uint64
	Price *big.Int
}
