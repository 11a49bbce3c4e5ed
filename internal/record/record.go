package record

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TimestampLayout is the layout of Record.Timestamp. Fractional seconds are
// accepted when parsing.
const TimestampLayout = time.RFC3339

// Record is the persisted pointer to the live contract instance on one
// network. The JSON field names are part of the on-disk format.
type Record struct {
	Network         string `json:"network" validate:"required"`
	ContractAddress string `json:"contractAddress" validate:"required,eth_addr"`
	Deployer        string `json:"deployer" validate:"required,eth_addr"`
	Timestamp       string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Explorer        string `json:"explorer,omitempty" validate:"omitempty,uri"`
	TransactionHash string `json:"transactionHash,omitempty" validate:"omitempty,hexadecimal"`
	BlockNumber     uint64 `json:"blockNumber,omitempty"`
	ChainID         uint64 `json:"chainId,omitempty"`
	GasUsed         uint64 `json:"gasUsed,omitempty"`
	GasLimit        uint64 `json:"gasLimit,omitempty"`
}

// Contract returns the deployed contract address.
func (r Record) Contract() common.Address {
	return common.HexToAddress(r.ContractAddress)
}

// DeployedAt parses Timestamp.
func (r Record) DeployedAt() (time.Time, error) {
	return time.Parse(TimestampLayout, r.Timestamp)
}

// FormatTimestamp renders t the way Record.Timestamp stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
