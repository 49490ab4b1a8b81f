package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/chain"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
	"golang.org/x/sync/errgroup"
)

// mailSource is the source named in operator mails.
const mailSource = "status-manager"

// State is the phase of the tick, which is currently run by a Manager.
type State int32

const (
	Idle State = iota
	FetchingLatest
	LoadingIndex
	Dispatching
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingLatest:
		return "fetching-latest"
	case LoadingIndex:
		return "loading-index"
	case Dispatching:
		return "dispatching"
	case Committing:
		return "committing"
	default:
		return "unknown"
	}
}

// Options configure a Manager.
type Options struct {
	// NearBorderThreshold is the number of slots into an epoch, up to which
	// a slot without block is considered to be too close to the border.
	NearBorderThreshold uint
	// RetryBudget is the number of tolerated failed queries for a slot.
	RetryBudget int
	// RewardsLag is the number of epochs after which rewards are expected.
	RewardsLag uint
	// ExplorerURL is the prefix of links to minted blocks.
	ExplorerURL string
	// Workers is the number of epoch records processed concurrently.
	Workers int
}

// DefaultOptions returns the default options of a Manager.
func DefaultOptions() Options {
	return Options{
		NearBorderThreshold: 1000,
		RetryBudget:         1,
		RewardsLag:          2,
		ExplorerURL:         "https://cardanoscan.io/block/",
		Workers:             4,
	}
}

// TickReport summarizes a completed tick.
type TickReport struct {
	LatestSlot     uint64        `json:"latestSlot"`
	LatestEpoch    uint          `json:"latestEpoch"`
	Records        int           `json:"records"`
	Visited        int           `json:"visited"`
	Transitions    int           `json:"transitions"`
	RewardsSettled int           `json:"rewardsSettled"`
	Pruned         int           `json:"pruned"`
	Failed         int           `json:"failed"`
	PendingSlots   int           `json:"pendingSlots"`
	PendingRewards int           `json:"pendingRewards"`
	FinishedAt     time.Time     `json:"finishedAt"`
	Duration       time.Duration `json:"duration"`
}

// Manager periodically reconciles the due slots and rewards listed in the
// work index of the database.
type Manager struct {
	backend    chain.Backend
	db         db.DB
	emitter    notify.Emitter
	mailer     notify.Mailer
	reconciler *Reconciler
	aggregator *Aggregator
	opts       Options

	state    atomic.Int32
	tickLock sync.Mutex

	lock       sync.RWMutex
	tip        *chain.Tip
	lastReport *TickReport

	cron *cron.Cron
}

// NewManager creates a new manager, which queries the chain with the given
// backend, and stores the outcome in the given database. Transitions are
// emitted with the given emitter and failures are reported with the given
// mailer.
func NewManager(backend chain.Backend, idb db.DB, emitter notify.Emitter, mailer notify.Mailer,
	opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultOptions().ExplorerURL
	}
	reconciler := NewReconciler(backend)
	reconciler.NearBorderThreshold = opts.NearBorderThreshold
	reconciler.RetryBudget = opts.RetryBudget
	reconciler.ExplorerURL = opts.ExplorerURL
	return &Manager{
		backend:    backend,
		db:         idb,
		emitter:    emitter,
		mailer:     mailer,
		reconciler: reconciler,
		aggregator: NewAggregator(backend),
		opts:       opts,
	}
}

// State returns the phase of the running tick.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(state State) {
	m.state.Store(int32(state))
}

// GetTip returns the latest block seen by this manager. Nil is returned, if
// no tick has fetched it yet.
func (m *Manager) GetTip() *chain.Tip {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.tip
}

// LastReport returns the report of the latest completed tick.
func (m *Manager) LastReport() *TickReport {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.lastReport
}

// Tick runs a single reconciliation pass. The due work of every epoch
// record is processed concurrently, then the outcome of each record is
// committed in its own transaction. Notifications are only emitted for
// committed transitions.
//
// An error will be returned, if the latest block or the work index couldn't
// be fetched. Failures concerning single records are only logged, they are
// retried with the next tick.
func (m *Manager) Tick(ctx context.Context) (*TickReport, error) {
	m.tickLock.Lock()
	defer m.tickLock.Unlock()
	defer m.setState(Idle)
	start := time.Now()

	m.setState(FetchingLatest)
	tip, err := m.backend.GetLatestBlock(ctx)
	if err != nil {
		tickCounter.WithLabelValues("skipped").Inc()
		log.Errorf("skipping the tick, the latest block couldn't be fetched: %s", err.Error())
		return nil, err
	}
	m.lock.Lock()
	m.tip = tip
	m.lock.Unlock()
	log.Infof("fetched the tip (%d,%d) at slot %d with hash=%s", tip.Epoch, tip.SlotInEpoch, tip.Slot,
		tip.Hash)

	m.setState(LoadingIndex)
	index, err := m.db.GetWorkIndex(ctx)
	if err != nil {
		tickCounter.WithLabelValues("skipped").Inc()
		log.Errorf("skipping the tick, the work index couldn't be loaded: %s", err.Error())
		return nil, err
	}
	partition := PartitionIndex(index, tip.Slot, tip.Epoch, m.opts.RewardsLag)
	pendingGauge.WithLabelValues("slots").Set(float64(partition.PendingSlots))
	pendingGauge.WithLabelValues("rewards").Set(float64(partition.PendingRewards))
	report := &TickReport{
		LatestSlot:     tip.Slot,
		LatestEpoch:    tip.Epoch,
		Records:        len(partition.Due),
		PendingSlots:   partition.PendingSlots,
		PendingRewards: partition.PendingRewards,
	}

	m.setState(Dispatching)
	mutations := make([]*Mutation, len(partition.Due))
	var group errgroup.Group
	group.SetLimit(m.opts.Workers)
	for i, work := range partition.Due {
		group.Go(func() error {
			mutations[i] = m.process(ctx, work, tip.Slot)
			return nil
		})
	}
	_ = group.Wait()

	m.setState(Committing)
	for _, mut := range mutations {
		if mut == nil {
			report.Failed++
			continue
		}
		if mut.Slots != nil {
			report.Visited += mut.Slots.Visited
		}
		if mut.empty() {
			continue
		}
		result, err := m.commit(ctx, mut)
		if err != nil {
			report.Failed++
			commitFailureCounter.Inc()
			log.Errorf("committing the update of %s failed, it is retried with the next tick: %s",
				mut.Work.Ref, err.Error())
			continue
		}
		report.Pruned += result.pruned
		report.Transitions += len(result.applied)
		if result.rewardsSettled {
			report.RewardsSettled++
			log.Infof("settled the rewards of %s at %d lovelace", mut.Work.Ref, *result.record.PoolRewards)
		}
		m.announce(ctx, mut, result)
	}
	m.refreshLatestEpoch(ctx, tip.Epoch)

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(start)
	tickCounter.WithLabelValues("completed").Inc()
	tickDuration.Observe(report.Duration.Seconds())
	m.lock.Lock()
	m.lastReport = report
	m.lock.Unlock()
	log.Infof("finished the tick for %d records in %v: %d slots visited, %d transitions, %d rewards settled, "+
		"%d failed", report.Records, report.Duration, report.Visited, report.Transitions, report.RewardsSettled,
		report.Failed)
	return report, nil
}

// process runs the reconciler and aggregator for the given work. Nil is
// returned, if the epoch record couldn't be loaded.
func (m *Manager) process(ctx context.Context, work Work, latestSlot uint64) *Mutation {
	mut := &Mutation{Work: work}
	record, err := m.db.GetEpochRecord(ctx, work.Ref)
	if errors.Is(err, db.NotFoundError) {
		log.Warnf("the work index references %s, which doesn't exist", work.Ref)
		mut.Stale = true
		return mut
	}
	if err != nil {
		log.Errorf("couldn't load %s: %s", work.Ref, err.Error())
		return nil
	}
	mut.StaleSlots = unplannedSlots(record, work.Slots)
	if len(work.Slots) > 0 {
		mut.Slots = m.reconciler.Reconcile(ctx, record, latestSlot)
	}
	if work.Rewards {
		if record.PoolRewards != nil {
			mut.Rewards = &RewardsUpdate{Ref: work.Ref, Settled: true, Rewards: *record.PoolRewards}
			return mut
		}
		pool, err := m.db.GetPool(ctx, work.Ref.PoolIDBech32)
		if err != nil && !errors.Is(err, db.NotFoundError) {
			log.Errorf("couldn't load the pool of %s: %s", work.Ref, err.Error())
		}
		current := record
		if mut.Slots.Changed() {
			current = cloneRecord(record)
			mut.Slots.Apply(current)
		}
		update, err := m.aggregator.Aggregate(ctx, current, pool)
		if err != nil {
			log.Warnf("aggregating the rewards of %s failed: %s", work.Ref, err.Error())
		}
		mut.Rewards = update
	}
	return mut
}

// announce emits a notification for every transition of the committed
// result and mails the failures, which have to be reported.
func (m *Manager) announce(ctx context.Context, mut *Mutation, result *commitResult) {
	for _, slot := range result.applied {
		transitionCounter.WithLabelValues(string(slot.Status), string(slot.FailedReason)).Inc()
		m.emitter.Emit(ctx, notify.NewBlock, notify.ToPool(result.record.PoolIDBech32),
			newBlockPayload(result.record, slot))
		if mut.Slots.Mail[slot.Slot] {
			m.mailFailedSlot(ctx, result.record, slot)
		}
	}
}

func (m *Manager) mailFailedSlot(ctx context.Context, record *db.EpochRecord, slot db.Slot) {
	ticker := ""
	pool, err := m.db.GetPool(ctx, record.PoolIDBech32)
	if err == nil {
		ticker = pool.Ticker
	}
	info := strings.Join([]string{
		"PoolId: " + record.PoolIDBech32,
		"Pool ticker: " + ticker,
		fmt.Sprintf("Epoch: %d", record.Epoch),
		fmt.Sprintf("Slot: %d", slot.Slot),
		"Slot block url (if applicable): " + slot.BlockURL,
	}, ", ")
	m.mailer.SendMail(fmt.Sprintf("Slot status changed to FAILED. Slot: %d", slot.Slot),
		"<span>"+info+"</span>", mailSource, info)
}

// refreshLatestEpoch updates the stored latest epoch, if the chain entered
// a new one. A notify.NewEpoch notification is emitted in this case.
func (m *Manager) refreshLatestEpoch(ctx context.Context, epoch uint) {
	stored, err := m.db.GetLatestEpoch(ctx)
	if err != nil {
		log.Errorf("couldn't load the latest epoch: %s", err.Error())
		return
	}
	if stored != nil && stored.Epoch == epoch {
		return
	}
	info, err := m.backend.GetLatestEpoch(ctx)
	if err != nil {
		log.Errorf("couldn't fetch the latest epoch: %s", err.Error())
		return
	}
	latest := &db.EpochInfo{
		Epoch:      info.Epoch,
		StartTime:  info.StartTime,
		EndTime:    info.EndTime,
		BlockCount: info.BlockCount,
		TxCount:    info.TxCount,
	}
	err = m.db.PutLatestEpoch(ctx, latest)
	if err != nil {
		log.Errorf("couldn't store the latest epoch %d: %s", latest.Epoch, err.Error())
		return
	}
	log.Infof("the chain entered epoch %d", latest.Epoch)
	m.emitter.Emit(ctx, notify.NewEpoch, notify.Receivers{}, latest)
}

// Start schedules ticks with the given cron expression, which has a
// leading seconds field. A tick is skipped, if the previous one is still
// running.
func (m *Manager) Start(schedule string) error {
	logger := cron.PrintfLogger(log.StandardLogger())
	m.cron = cron.New(cron.WithSeconds(), cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := m.cron.AddFunc(schedule, func() {
		_, _ = m.Tick(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid status schedule '%s': %w", schedule, err)
	}
	log.Infof("scheduling the status manager at '%s'", schedule)
	m.cron.Start()
	return nil
}

// Stop stops scheduling ticks and waits for the running tick to finish.
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
