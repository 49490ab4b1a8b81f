package status

import (
	"context"
	"fmt"
	"sync"

	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
)

const (
	ownPool    = "pool1ownpool"
	ownPoolHex = "0f0f0f"
	otherPool  = "pool1otherpool"
)

type fakeBackend struct {
	lock        sync.Mutex
	tip         *chain.Tip
	tipErr      error
	blocks      map[uint64]*chain.Block
	metadata    map[string]*chain.StakePool
	metadataErr error
	info        *chain.PoolInfo
	infoErr     error
	rewards     []chain.Reward
	rewardsErr  error
	epoch       *chain.EpochInfo
	blockCalls  map[uint64]int
	infoCalls   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		blocks:     map[uint64]*chain.Block{},
		metadata:   map[string]*chain.StakePool{},
		blockCalls: map[uint64]int{},
	}
}

func (f *fakeBackend) Name() string {
	return "fake"
}

func (f *fakeBackend) GetLatestBlock(_ context.Context) (*chain.Tip, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return f.tip, nil
}

func (f *fakeBackend) GetBlockBySlot(_ context.Context, slot uint64) (*chain.Block, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.blockCalls[slot]++
	block, found := f.blocks[slot]
	if !found {
		return nil, fmt.Errorf("%w: no block in slot %d", chain.QueryError, slot)
	}
	return block, nil
}

func (f *fakeBackend) GetLatestEpoch(_ context.Context) (*chain.EpochInfo, error) {
	if f.epoch == nil {
		return nil, chain.QueryError
	}
	return f.epoch, nil
}

func (f *fakeBackend) GetPoolMetadata(_ context.Context, poolID string) (*chain.StakePool, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	pool, found := f.metadata[poolID]
	if !found {
		return &chain.StakePool{Bech32ID: poolID}, nil
	}
	return pool, nil
}

func (f *fakeBackend) GetPoolInfo(_ context.Context, _ string) (*chain.PoolInfo, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeBackend) GetPoolRewards(_ context.Context, _ string) ([]chain.Reward, error) {
	if f.rewardsErr != nil {
		return nil, f.rewardsErr
	}
	return f.rewards, nil
}

func block(slot, height uint64, leader string) *chain.Block {
	return &chain.Block{
		Tip:        chain.Tip{Height: height, Slot: slot},
		SlotLeader: leader,
		TxCount:    4,
		Fees:       800_000,
	}
}

type emitted struct {
	eventType notify.EventType
	receivers notify.Receivers
	payload   interface{}
}

type fakeEmitter struct {
	lock   sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(_ context.Context, eventType notify.EventType, receivers notify.Receivers,
	payload interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.events = append(f.events, emitted{eventType: eventType, receivers: receivers, payload: payload})
}

func (f *fakeEmitter) ofType(eventType notify.EventType) []emitted {
	f.lock.Lock()
	defer f.lock.Unlock()
	var events []emitted
	for _, event := range f.events {
		if event.eventType == eventType {
			events = append(events, event)
		}
	}
	return events
}

type fakeMailer struct {
	lock     sync.Mutex
	subjects []string
	bodies   []string
}

func (f *fakeMailer) SendMail(subject, htmlBody, _, _ string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, htmlBody)
}
