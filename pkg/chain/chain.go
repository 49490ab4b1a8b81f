package chain

import (
	"context"
	"errors"
)

// StakePool is an object containing metadata information about a certain pool.
type StakePool struct {
	// Ticker is the short pool name. It is empty for private pools, which
	// haven't registered any metadata.
	Ticker string
	// Name is the full pool name.
	Name string
	// HexID is the unique pool hash in hex format.
	HexID string
	// Bech32ID is the unique pool id in its bech32 encoding ("pool1...").
	Bech32ID string
}

// PoolInfo is the on-chain registration and stake information of a pool.
type PoolInfo struct {
	// Bech32ID is the unique pool id in its bech32 encoding.
	Bech32ID string
	// HexID is the unique pool hash in hex format.
	HexID string
	// RewardAccount is the stake address to which the rewards of the pool
	// are paid.
	RewardAccount string
	// ActiveStake is the active stake of the pool in lovelace.
	ActiveStake uint64
	// ActiveSize is the share of the pool in the total active stake.
	ActiveSize float64
}

type Tip struct {
	// Height is the height number of this block.
	Height uint64
	// Hash is the unique hash of this block.
	Hash string
	// Epoch is the epoch in which this block has been minted.
	Epoch uint
	// SlotInEpoch is the slot in the epoch in which the
	// block has been minted.
	SlotInEpoch uint
	// Slot is the slot in which the block has been minted, but the slot number
	// is counted from the inception of the chain.
	Slot uint64
	// Timestamp is the Unix timestamp in seconds of the time at which this
	// block has been minted.
	Timestamp int64
}

// Block is an object containing information about a block found at a
// certain slot.
type Block struct {
	Tip
	// SlotLeader is the id of the pool that minted this block. Blockfrost
	// reports it in bech32 encoding. It is empty, if the slot leader is
	// unknown.
	SlotLeader string
	// TxCount is the number of transactions in this block.
	TxCount uint64
	// Fees is the sum of the transaction fees in lovelace.
	Fees uint64
}

// EpochInfo describes an epoch of the chain.
type EpochInfo struct {
	Epoch      uint
	StartTime  int64
	EndTime    int64
	BlockCount uint64
	TxCount    uint64
}

// Reward is a reward paid to a stake address for a certain epoch.
type Reward struct {
	Epoch  uint
	Amount uint64
	PoolID string
}

// Backend is an interface for querying the underlying blockchain.
//
// Every method makes a bounded number of attempts. If querying the chain
// failed nevertheless, an error wrapping QueryError is returned.
type Backend interface {

	// Name returns the name of this backend.
	Name() string

	// GetLatestBlock queries for the latest minted block (i.e. the tip of the
	// chain).
	GetLatestBlock(ctx context.Context) (*Tip, error)

	// GetBlockBySlot queries the block that has been minted in the given
	// slot.
	GetBlockBySlot(ctx context.Context, slot uint64) (*Block, error)

	// GetLatestEpoch queries the information about the current epoch.
	GetLatestEpoch(ctx context.Context) (*EpochInfo, error)

	// GetPoolMetadata queries the registered metadata of the pool with the
	// given id (bech32 or hex).
	GetPoolMetadata(ctx context.Context, poolID string) (*StakePool, error)

	// GetPoolInfo queries the registration and stake information of the pool
	// with the given id (bech32 or hex).
	GetPoolInfo(ctx context.Context, poolID string) (*PoolInfo, error)

	// GetPoolRewards queries the reward history of the given stake address.
	GetPoolRewards(ctx context.Context, stakeAddress string) ([]Reward, error)
}

// QueryError is returned, when a query to the chain failed even after all
// attempts.
var QueryError = errors.New("querying the chain failed")
