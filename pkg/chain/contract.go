package chain

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/motormint/marketclient/pkg/types"
)

// Marketplace contract functions. Earlier contract revisions exposed aliases
// such as getAllMintedCars and getDealerCars; the client binds only this
// canonical surface.
const (
	FnGetCarsForSale        = "getCarsForSale"
	FnGetCarsByDealer       = "getCarsByDealer"
	FnGetCarDetails         = "getCarDetails"
	FnGetOwnershipHistory   = "getOwnershipHistory"
	FnGetTokenURI           = "getTokenURI"
	FnDealerRegistrationFee = "dealerRegistrationFee"
	FnRegisterDealer        = "registerDealer"
	FnMintCar               = "mintCar"
	FnListCar               = "listCar"
	FnBuyCar                = "buyCar"
)

const marketplaceABIJSON = `[
  {"inputs":[],"name":"getCarsForSale","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"make","type":"string"},{"internalType":"string","name":"model","type":"string"},{"internalType":"uint16","name":"year","type":"uint16"},{"internalType":"string","name":"vin","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"forSale","type":"bool"},{"internalType":"address","name":"owner","type":"address"}],"internalType":"struct CarMarketplace.Car[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"dealer","type":"address"}],"name":"getCarsByDealer","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"make","type":"string"},{"internalType":"string","name":"model","type":"string"},{"internalType":"uint16","name":"year","type":"uint16"},{"internalType":"string","name":"vin","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"forSale","type":"bool"},{"internalType":"address","name":"owner","type":"address"}],"internalType":"struct CarMarketplace.Car[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"carId","type":"uint256"}],"name":"getCarDetails","outputs":[{"components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"make","type":"string"},{"internalType":"string","name":"model","type":"string"},{"internalType":"uint16","name":"year","type":"uint16"},{"internalType":"string","name":"vin","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"bool","name":"forSale","type":"bool"},{"internalType":"address","name":"owner","type":"address"}],"internalType":"struct CarMarketplace.Car","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"carId","type":"uint256"}],"name":"getOwnershipHistory","outputs":[{"components":[{"internalType":"address","name":"from","type":"address"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"timestamp","type":"uint256"},{"internalType":"uint256","name":"price","type":"uint256"}],"internalType":"struct CarMarketplace.Transfer[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"carId","type":"uint256"}],"name":"getTokenURI","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"dealerRegistrationFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"name","type":"string"},{"internalType":"string","name":"email","type":"string"}],"name":"registerDealer","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"string","name":"make","type":"string"},{"internalType":"string","name":"model","type":"string"},{"internalType":"uint16","name":"year","type":"uint16"},{"internalType":"string","name":"vin","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"string","name":"tokenURI","type":"string"}],"name":"mintCar","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"carId","type":"uint256"},{"internalType":"uint256","name":"price","type":"uint256"}],"name":"listCar","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"carId","type":"uint256"}],"name":"buyCar","outputs":[],"stateMutability":"payable","type":"function"}
]`

var marketABI = mustParseABI(marketplaceABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid embedded marketplace ABI: " + err.Error())
	}
	return parsed
}

// MarketplaceABI returns the parsed canonical contract ABI. Signer
// implementations use it to pack state-changing calls.
func MarketplaceABI() abi.ABI {
	return marketABI
}

// carTuple mirrors the contract's Car struct for ABI decoding.
type carTuple struct {
	Id      *big.Int
	Make    string
	Model   string
	Year    uint16
	Vin     string
	Price   *big.Int
	ForSale bool
	Owner   common.Address
}

func (c carTuple) toRecord() *types.VehicleRecord {
	return &types.VehicleRecord{
		ID:      c.Id.Uint64(),
		Make:    c.Make,
		Model:   c.Model,
		Year:    c.Year,
		VIN:     c.Vin,
		Price:   c.Price,
		ForSale: c.ForSale,
		Owner:   c.Owner.Hex(),
	}
}

func toRecords(cars []carTuple) []*types.VehicleRecord {
	records := make([]*types.VehicleRecord, len(cars))
	for i, car := range cars {
		records[i] = car.toRecord()
	}
	return records
}

// transferTuple mirrors the contract's Transfer struct for ABI decoding.
type transferTuple struct {
	From      common.Address
	To        common.Address
	Timestamp *big.Int
	Price     *big.Int
}

func (t transferTuple) toEvent() *types.OwnershipEvent {
	return &types.OwnershipEvent{
		From:      t.From.Hex(),
		To:        t.To.Hex(),
		Timestamp: time.Unix(t.Timestamp.Int64(), 0).UTC(),
		Price:     t.Price,
	}
}

func toEvents(transfers []transferTuple) []*types.OwnershipEvent {
	events := make([]*types.OwnershipEvent, len(transfers))
	for i, transfer := range transfers {
		events[i] = transfer.toEvent()
	}
	return events
}
