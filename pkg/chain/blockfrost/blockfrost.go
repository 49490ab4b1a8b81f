package blockfrost

import (
	"context"
	"fmt"
	"time"

	"github.com/blockfrost/blockfrost-go"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
)

// Endpoint kinds of the chain data API.
const (
	EndpointBlockBySlot  = "block-by-slot"
	EndpointLatestBlock  = "latest-block"
	EndpointLatestEpoch  = "latest-epoch"
	EndpointPoolMetadata = "pool-metadata"
	EndpointPoolInfo     = "pool-info"
	EndpointPoolRewards  = "pool-rewards"
)

// api lists the parts of the Blockfrost client used by the backend.
type api interface {
	BlockLatest(ctx context.Context) (blockfrost.Block, error)
	BlockBySlot(ctx context.Context, slotNumber int) (blockfrost.Block, error)
	EpochLatest(ctx context.Context) (blockfrost.Epoch, error)
	PoolMetadata(ctx context.Context, poolID string) (blockfrost.PoolMetadata, error)
	Pool(ctx context.Context, poolID string) (blockfrost.Pool, error)
	AccountRewardsHistory(ctx context.Context, stakeAddress string,
		query blockfrost.APIQueryParams) ([]blockfrost.AccountRewardsHistory, error)
}

var _ api = (blockfrost.APIClient)(nil)

// Options configure the Blockfrost backend.
type Options struct {
	// ProjectID is the Blockfrost API key of the project.
	ProjectID string
	// Server is the base URL of the API. The mainnet API is used, if it is
	// empty.
	Server string
	// Retries is the number of additional attempts after a failed call.
	Retries uint64
	// Backoff is the pause between two attempts.
	Backoff time.Duration
	// Timeout bounds every single attempt.
	Timeout time.Duration
	// CacheSize is the number of pools whose metadata is cached.
	CacheSize int
}

// Backend is an implementation of chain.Backend that makes use of the
// Blockfrost API.
type Backend struct {
	client api
	cache  *poolCache
	opts   Options
}

// NewBlockFrostBackend is creating a new chain.Backend that uses Blockfrost
// API with the given options.
func NewBlockFrostBackend(opts Options) (*Backend, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("project id for blockfrost hasn't been specified")
	}
	client := blockfrost.NewAPIClient(blockfrost.APIClientOptions{
		ProjectID: opts.ProjectID,
		Server:    opts.Server,
	})
	return newBackend(client, opts), nil
}

func newBackend(client api, opts Options) *Backend {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Backend{
		client: client,
		cache:  newPoolCache(opts.CacheSize),
		opts:   opts,
	}
}

func (b *Backend) Name() string {
	return "blockfrost"
}

// query calls f until it succeeds or the retry budget is exhausted. Every
// attempt is bounded by the configured timeout. The returned error wraps
// chain.QueryError.
func (b *Backend) query(ctx context.Context, endpoint string, f func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(b.opts.Retries, retry.NewConstant(b.backoff()))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
		if err := f(callCtx); err != nil {
			log.Debugf("%s query attempt %d failed: %s", endpoint, attempt, err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		queryCounter.WithLabelValues(endpoint, "failure").Inc()
		return fmt.Errorf("%w: %s after %d attempts: %v", chain.QueryError, endpoint, attempt, err)
	}
	queryCounter.WithLabelValues(endpoint, "success").Inc()
	return nil
}

func (b *Backend) backoff() time.Duration {
	if b.opts.Backoff <= 0 {
		return time.Millisecond
	}
	return b.opts.Backoff
}

func toTip(block blockfrost.Block) chain.Tip {
	return chain.Tip{
		Height:      count(block.Height),
		Hash:        block.Hash,
		Epoch:       uint(count(block.Epoch)),
		SlotInEpoch: uint(count(block.EpochSlot)),
		Slot:        count(block.Slot),
		Timestamp:   int64(count(block.Time)),
	}
}

func (b *Backend) GetLatestBlock(ctx context.Context) (*chain.Tip, error) {
	var block blockfrost.Block
	err := b.query(ctx, EndpointLatestBlock, func(ctx context.Context) (err error) {
		block, err = b.client.BlockLatest(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	tip := toTip(block)
	return &tip, nil
}

func (b *Backend) GetBlockBySlot(ctx context.Context, slot uint64) (*chain.Block, error) {
	var block blockfrost.Block
	err := b.query(ctx, EndpointBlockBySlot, func(ctx context.Context) (err error) {
		block, err = b.client.BlockBySlot(ctx, int(slot))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &chain.Block{
		Tip:        toTip(block),
		SlotLeader: block.SlotLeader,
		TxCount:    count(block.TxCount),
		Fees:       parseLovelace(block.Fees),
	}, nil
}

func (b *Backend) GetLatestEpoch(ctx context.Context) (*chain.EpochInfo, error) {
	var epoch blockfrost.Epoch
	err := b.query(ctx, EndpointLatestEpoch, func(ctx context.Context) (err error) {
		epoch, err = b.client.EpochLatest(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &chain.EpochInfo{
		Epoch:      uint(count(epoch.Epoch)),
		StartTime:  int64(count(epoch.StartTime)),
		EndTime:    int64(count(epoch.EndTime)),
		BlockCount: count(epoch.BlockCount),
		TxCount:    count(epoch.TxCount),
	}, nil
}

// fetchPoolMetadata returns a function that can be used with the pool
// cache to fetch metadata of a pool.
func (b *Backend) fetchPoolMetadata() fetchPoolMetadataFunc {
	return func(ctx context.Context, poolID string) (*chain.StakePool, error) {
		var metadata blockfrost.PoolMetadata
		err := b.query(ctx, EndpointPoolMetadata, func(ctx context.Context) (err error) {
			metadata, err = b.client.PoolMetadata(ctx, poolID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &chain.StakePool{
			HexID:    metadata.Hex,
			Bech32ID: metadata.PoolID,
			Ticker:   metadata.Ticker,
			Name:     metadata.Name,
		}, nil
	}
}

func (b *Backend) GetPoolMetadata(ctx context.Context, poolID string) (*chain.StakePool, error) {
	return b.cache.fetchPoolMetadata(ctx, poolID, b.fetchPoolMetadata())
}

func (b *Backend) GetPoolInfo(ctx context.Context, poolID string) (*chain.PoolInfo, error) {
	var pool blockfrost.Pool
	err := b.query(ctx, EndpointPoolInfo, func(ctx context.Context) (err error) {
		pool, err = b.client.Pool(ctx, poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &chain.PoolInfo{
		Bech32ID:      pool.PoolID,
		HexID:         pool.Hex,
		RewardAccount: pool.RewardAccount,
		ActiveStake:   parseLovelace(pool.ActiveStake),
		ActiveSize:    pool.ActiveSize,
	}, nil
}

func (b *Backend) GetPoolRewards(ctx context.Context, stakeAddress string) ([]chain.Reward, error) {
	var history []blockfrost.AccountRewardsHistory
	err := b.query(ctx, EndpointPoolRewards, func(ctx context.Context) (err error) {
		history, err = b.client.AccountRewardsHistory(ctx, stakeAddress,
			blockfrost.APIQueryParams{Order: "desc"})
		return err
	})
	if err != nil {
		return nil, err
	}
	rewards := make([]chain.Reward, 0, len(history))
	for _, entry := range history {
		rewards = append(rewards, chain.Reward{
			Epoch:  uint(count(entry.Epoch)),
			Amount: parseLovelace(entry.Amount),
			PoolID: entry.PoolID,
		})
	}
	return rewards, nil
}
