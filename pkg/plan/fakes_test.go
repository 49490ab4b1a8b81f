package plan

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db/sqlstore"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
)

var poolHex = strings.Repeat("0f", 28)

type fakeBackend struct {
	lock        sync.Mutex
	info        *chain.PoolInfo
	infoErr     error
	metadata    *chain.StakePool
	metadataErr error
	infoCalls   int
}

func (f *fakeBackend) Name() string {
	return "fake"
}

func (f *fakeBackend) GetLatestBlock(_ context.Context) (*chain.Tip, error) {
	return nil, chain.QueryError
}

func (f *fakeBackend) GetBlockBySlot(_ context.Context, _ uint64) (*chain.Block, error) {
	return nil, chain.QueryError
}

func (f *fakeBackend) GetLatestEpoch(_ context.Context) (*chain.EpochInfo, error) {
	return nil, chain.QueryError
}

func (f *fakeBackend) GetPoolMetadata(_ context.Context, poolID string) (*chain.StakePool, error) {
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	if f.metadata == nil {
		return &chain.StakePool{Bech32ID: poolID}, nil
	}
	return f.metadata, nil
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
	return nil, chain.QueryError
}

type fakeEmitter struct {
	lock     sync.Mutex
	types    []notify.EventType
	payloads []interface{}
}

func (f *fakeEmitter) Emit(_ context.Context, eventType notify.EventType, _ notify.Receivers,
	payload interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.types = append(f.types, eventType)
	f.payloads = append(f.payloads, payload)
}

type fakeMailer struct {
	lock     sync.Mutex
	subjects []string
	sources  []string
}

func (f *fakeMailer) SendMail(subject, _, source, _ string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.subjects = append(f.subjects, subject)
	f.sources = append(f.sources, source)
}

func openStore(t *testing.T) *sqlstore.Store {
	store, err := sqlstore.NewSQLiteDB(t.TempDir())
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newTestPlanner(t *testing.T) (*Planner, *fakeBackend, *sqlstore.Store, *fakeEmitter, *fakeMailer) {
	backend := &fakeBackend{
		info: &chain.PoolInfo{
			HexID:         poolHex,
			RewardAccount: "stake1owner",
			ActiveStake:   20_000_000_000_000,
			ActiveSize:    0.001,
		},
		metadata: &chain.StakePool{Ticker: "spool"},
	}
	store := openStore(t)
	emitter := &fakeEmitter{}
	mailer := &fakeMailer{}
	return NewPlanner(backend, store, emitter, mailer, chain.Mainnet), backend, store, emitter, mailer
}

// leaderLog creates a leader log of epoch 400 for the test pool with a
// slot for every given slot in epoch.
func leaderLog(slotsInEpoch ...uint) *LeaderLog {
	start := chain.Mainnet.EpochStart(400)
	firstSlot := chain.Mainnet.SlotOffset + (400-uint64(chain.Mainnet.EpochOffset))*chain.Mainnet.SlotsPerEpoch
	slots := make([]AssignedSlot, 0, len(slotsInEpoch))
	for i, slotInEpoch := range slotsInEpoch {
		slots = append(slots, AssignedSlot{
			No:          ptr(uint(i + 1)),
			Slot:        ptr(firstSlot + uint64(slotInEpoch)),
			SlotInEpoch: ptr(slotInEpoch),
			At:          ptr(start.Add(time.Duration(slotInEpoch) * time.Second)),
		})
	}
	return &LeaderLog{
		PoolID:           poolHex,
		Epoch:            ptr(uint(400)),
		EpochSlots:       ptr(uint(len(slots))),
		EpochSlotsIdeal:  ptr(1.8),
		MaxPerformance:   ptr(111.1),
		ActiveStake:      ptr(20_000_000_000_000.0),
		TotalActiveStake: ptr(22_000_000_000_000_000.0),
		AssignedSlots:    slots,
	}
}
