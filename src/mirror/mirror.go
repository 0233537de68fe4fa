package mirror

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mirrornet/mirror/src/checkpoint"
	"github.com/mirrornet/mirror/src/config"
	"github.com/mirrornet/mirror/src/downloader"
	"github.com/mirrornet/mirror/src/nodebook"
	"github.com/mirrornet/mirror/src/reconciler"
	"github.com/mirrornet/mirror/src/service"
	"github.com/mirrornet/mirror/src/storage"
	"github.com/mirrornet/mirror/src/stream"
)

// Mirror ties the components of the ingestor together: the node book, the
// object store, the checkpoint store, the reconciler's repository, and one
// downloader per enabled stream type, each driven by its own scheduler.
type Mirror struct {
	Config      *config.Config
	Books       *nodebook.Manager
	Store       storage.ObjectStore
	Checkpoints checkpoint.Store
	Repository  reconciler.Repository
	Reconciler  *reconciler.Reconciler
	Downloaders map[stream.Type]*downloader.Downloader
	Service     *service.Service

	schedulers map[stream.Type]*Scheduler
	shutdownCh chan struct{}
	wg         sync.WaitGroup

	statsLock sync.Mutex
	stats     map[stream.Type]*streamStats

	logger *logrus.Entry
}

type streamStats struct {
	rounds   int
	failures int
	lastFile string
}

// NewMirror ...
func NewMirror(conf *config.Config) *Mirror {
	return &Mirror{
		Config:      conf,
		Downloaders: map[stream.Type]*downloader.Downloader{},
		schedulers:  map[stream.Type]*Scheduler{},
		shutdownCh:  make(chan struct{}),
		stats:       map[stream.Type]*streamStats{},
		logger:      conf.Logger(),
	}
}

func (m *Mirror) initNodeBook() error {
	bookStore := nodebook.NewJSONNodeBook(m.Config.DataDir)

	genesis, err := bookStore.NodeBook()
	if err != nil {
		return fmt.Errorf("reading %s: %v", m.Config.NodeBookFile(), err)
	}

	if genesis.TotalStake() <= 0 {
		return fmt.Errorf("genesis node book has no stake")
	}

	m.Books = nodebook.NewManager(genesis, m.logger.WithField("prefix", "nodebook"))

	m.logger.WithFields(logrus.Fields{
		"nodes":       genesis.Len(),
		"total_stake": genesis.TotalStake(),
	}).Debug("Loaded genesis node book")

	return nil
}

func (m *Mirror) initStore() error {
	m.Store = storage.NewDirStore(m.Config.StreamDir)
	return nil
}

func (m *Mirror) initCheckpoints() error {
	if !m.Config.Store {
		m.Checkpoints = checkpoint.NewInmemStore()

		m.logger.Debug("created new in-mem checkpoint store")

		return nil
	}

	m.logger.WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := checkpoint.NewBadgerStore(m.Config.DatabaseDir)
	if err != nil {
		return err
	}

	m.Checkpoints = store

	return nil
}

func (m *Mirror) initRepository() error {
	if m.Config.PostgresDSN == "" {
		m.Repository = reconciler.NewInmemRepository()

		m.logger.Debug("created new in-mem repository")

		return nil
	}

	repo, err := reconciler.NewPGRepository(m.Config.PostgresDSN)
	if err != nil {
		return err
	}

	m.Repository = repo

	return nil
}

func (m *Mirror) initReconciler() error {
	m.Reconciler = reconciler.NewReconciler(
		m.Repository,
		m.Books,
		&reconciler.Config{
			PersistCryptoTransfers: m.Config.PersistCryptoTransfers,
			PersistNonFeeTransfers: m.Config.PersistNonFeeTransfers,
			NonFeeAggregated:       m.Config.NonFeeAggregated,
			TreasuryAccount:        m.Config.TreasuryAccount,
		},
		m.logger.WithField("prefix", "reconciler"),
	)
	return nil
}

func (m *Mirror) initDownloaders() error {
	for _, st := range m.enabledTypes() {
		m.Downloaders[st] = downloader.NewDownloader(
			st,
			m.Store,
			m.Checkpoints,
			m.Books,
			m.Reconciler.ProcessFile,
			m.Config.FetchTimeout,
			m.logger.WithField("prefix", "downloader"),
		)
		m.stats[st] = &streamStats{}
	}

	if len(m.Downloaders) == 0 {
		return fmt.Errorf("no stream type is enabled")
	}

	return nil
}

func (m *Mirror) initService() error {
	if !m.Config.NoService {
		m.Service = service.NewService(
			m.Config.ServiceAddr,
			m,
			m.Books,
			m.logger.WithField("prefix", "service"),
		)
	}
	return nil
}

// Init instantiates and wires the components. It must be called before Run.
func (m *Mirror) Init() error {
	if err := m.initNodeBook(); err != nil {
		return err
	}

	if err := m.initStore(); err != nil {
		return err
	}

	if err := m.initCheckpoints(); err != nil {
		return err
	}

	if err := m.initRepository(); err != nil {
		return err
	}

	if err := m.initReconciler(); err != nil {
		return err
	}

	if err := m.initDownloaders(); err != nil {
		return err
	}

	if err := m.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts a scheduler and a round loop per enabled stream type, and the
// API service when configured. It blocks until Shutdown is called.
func (m *Mirror) Run() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	for st, d := range m.Downloaders {
		scheduler := NewIntervalScheduler()
		m.schedulers[st] = scheduler

		go scheduler.Run(m.frequency(st))

		m.wg.Add(1)
		go m.roundLoop(st, d, scheduler)
	}

	<-m.shutdownCh

	m.wg.Wait()
}

// roundLoop runs one round per scheduler tick. Rounds of one stream type never
// overlap; this is what makes the checkpoint single-writer per type.
func (m *Mirror) roundLoop(st stream.Type, d *downloader.Downloader, scheduler *Scheduler) {
	defer m.wg.Done()

	logger := m.logger.WithField("stream_type", st.String())

	for {
		select {
		case <-scheduler.tickCh:
			//drain the stream before going back to sleep
			for {
				res, err := d.DownloadNextBatch()
				if err != nil {
					if !downloader.IsRound(err, downloader.NoNextFile) {
						m.recordFailure(st)
						logger.WithError(err).Error("Round failed")
					}
					break
				}
				m.recordRound(st, res)
			}
		case <-m.shutdownCh:
			return
		}
	}
}

// Shutdown stops the schedulers and waits for in-flight rounds to finish, then
// releases the stores.
func (m *Mirror) Shutdown() {
	m.logger.Debug("Shutdown")

	close(m.shutdownCh)

	for _, scheduler := range m.schedulers {
		scheduler.Shutdown()
	}

	m.wg.Wait()

	if m.Checkpoints != nil {
		m.Checkpoints.Close()
	}
	if m.Repository != nil {
		m.Repository.Close()
	}
}

// GetStats implements service.StatsProvider.
func (m *Mirror) GetStats() map[string]string {
	m.statsLock.Lock()
	defer m.statsLock.Unlock()

	book := m.Books.Current()

	stats := map[string]string{
		"nodes":       strconv.Itoa(book.Len()),
		"total_stake": strconv.FormatInt(book.TotalStake(), 10),
		"node_book":   book.Hex(),
	}

	for st, s := range m.stats {
		stats[st.String()+"_rounds"] = strconv.Itoa(s.rounds)
		stats[st.String()+"_failures"] = strconv.Itoa(s.failures)
		stats[st.String()+"_last_file"] = s.lastFile
	}

	return stats
}

func (m *Mirror) recordRound(st stream.Type, res *downloader.RoundResult) {
	m.statsLock.Lock()
	defer m.statsLock.Unlock()

	s := m.stats[st]
	s.rounds++
	s.lastFile = res.FileName
}

func (m *Mirror) recordFailure(st stream.Type) {
	m.statsLock.Lock()
	defer m.statsLock.Unlock()

	m.stats[st].failures++
}

func (m *Mirror) enabledTypes() []stream.Type {
	res := []stream.Type{}
	if m.Config.EnableRecords {
		res = append(res, stream.Record)
	}
	if m.Config.EnableEvents {
		res = append(res, stream.Event)
	}
	if m.Config.EnableBalances {
		res = append(res, stream.Balance)
	}
	return res
}

func (m *Mirror) frequency(st stream.Type) time.Duration {
	switch st {
	case stream.Event:
		return m.Config.EventFrequency
	case stream.Balance:
		return m.Config.BalanceFrequency
	}
	return m.Config.RecordFrequency
}
