package session

import (
	"context"
	"errors"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/zap"

	"github.com/ipfs-force-community/sophon-waveportal/metrics"
	"github.com/ipfs-force-community/sophon-waveportal/portal"
	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
	"github.com/ipfs-force-community/sophon-waveportal/wavelist"
)

var (
	errNotConnected = errors.New("wallet not connected")
	errClosed       = errors.New("session closed")
)

// Session ties the wallet, the contract client and the wave list together. It owns the
// live NewWave subscription of the active account.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	gateway *wallet.Gateway
	backend portal.Backend
	cfg     *portal.Config
	model   *wavelist.Model
	alerter Alerter
	log     *zap.SugaredLogger

	// activateLk serializes account activation so only one subscription is ever live
	activateLk sync.Mutex

	lk      sync.Mutex
	closed  bool
	account types.Account
	client  *portal.Client
	sub     *portal.Subscription
	draft   string

	sinkLk sync.RWMutex
	sinks  []WaveSink
}

func NewSession(ctx context.Context, gateway *wallet.Gateway, backend portal.Backend, cfg *portal.Config, alerter Alerter, log *zap.SugaredLogger) *Session {
	if cfg == nil {
		cfg = portal.DefaultConfig()
	}
	if log == nil {
		log = logging.Logger("session").With()
	}
	if alerter == nil {
		alerter = NewLogAlerter(log)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ctx:     ctx,
		cancel:  cancel,
		gateway: gateway,
		backend: backend,
		cfg:     cfg,
		model:   wavelist.NewModel(),
		alerter: alerter,
		log:     log,
	}
}

func (s *Session) AddSink(sink WaveSink) {
	s.sinkLk.Lock()
	defer s.sinkLk.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Restore activates an account the wallet already authorized, without prompting. It is
// not an error when there is none.
func (s *Session) Restore(ctx context.Context) error {
	if !s.gateway.HasProvider() {
		s.log.Warn("make sure you have a wallet configured")
		return nil
	}
	accounts := s.gateway.ListConnectedAccounts(ctx)
	if len(accounts) == 0 {
		s.log.Info("no authorized account found")
		return nil
	}
	return s.activate(ctx, accounts[0])
}

// Connect asks the wallet for access and activates the first account it returns.
func (s *Session) Connect(ctx context.Context) (types.Account, error) {
	accounts, err := s.gateway.RequestAccess(ctx)
	if err != nil {
		return types.Account{}, s.fail("connect", err)
	}
	if err := s.activate(ctx, accounts[0]); err != nil {
		return types.Account{}, err
	}
	return accounts[0], nil
}

// SwitchAccount rebinds the contract client and the subscription to account.
func (s *Session) SwitchAccount(ctx context.Context, account types.Account) error {
	s.log.Infof("switch account to %s", account)
	return s.activate(ctx, account)
}

func (s *Session) activate(ctx context.Context, account types.Account) error {
	s.activateLk.Lock()
	defer s.activateLk.Unlock()

	if s.isClosed() {
		return s.fail("activate", errClosed)
	}
	s.release()

	signer, err := s.gateway.Signer(account)
	if err != nil {
		return s.fail("activate", err)
	}
	client, err := portal.NewClient(s.cfg, s.backend, signer)
	if err != nil {
		return s.fail("activate", err)
	}

	// subscribe before loading so no wave falls between the load and the first event
	s.model.BeginHydrate()
	sub, err := client.Subscribe(s.onWave)
	if err != nil {
		s.model.AbortHydrate()
		return s.fail("subscribe", err)
	}
	if err := s.load(ctx, client); err != nil {
		sub.Cancel()
		return s.fail("activate", err)
	}

	s.lk.Lock()
	if s.closed {
		s.lk.Unlock()
		sub.Cancel()
		return s.fail("activate", errClosed)
	}
	s.account = account
	s.client = client
	s.sub = sub
	s.lk.Unlock()
	go s.watchSubscription(account, sub)

	s.log.Infow("account connected", "account", account, "waves", s.model.Len(), "total", s.model.TotalCount())
	return nil
}

func (s *Session) isClosed() bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.closed
}

func (s *Session) release() {
	s.lk.Lock()
	sub := s.sub
	s.sub = nil
	s.client = nil
	s.account = types.Account{}
	s.lk.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

func (s *Session) watchSubscription(account types.Account, sub *portal.Subscription) {
	select {
	case err := <-sub.Err():
		s.log.Errorw("wave subscription terminated by node, reconnect to resume live waves", "account", account, "err", err)
	case <-sub.Done():
		select {
		case err := <-sub.Err():
			s.log.Errorw("wave subscription terminated by node, reconnect to resume live waves", "account", account, "err", err)
		default:
		}
	}
}

func (s *Session) hydrate(ctx context.Context, client *portal.Client) error {
	s.model.BeginHydrate()
	return s.load(ctx, client)
}

// load finishes a hydration started with BeginHydrate.
func (s *Session) load(ctx context.Context, client *portal.Client) error {
	entries, err := client.GetAllWaves(ctx)
	if err != nil {
		s.model.AbortHydrate()
		return err
	}
	count, err := client.GetTotalWaves(ctx)
	if err != nil {
		s.model.AbortHydrate()
		return err
	}
	s.model.Hydrate(entries)
	s.model.SetTotalCount(count)
	return nil
}

func (s *Session) onWave(account types.Account, ts time.Time, message string) {
	rec := s.model.AppendLive(account, ts, message)
	s.log.Infow("new wave", "from", account, "message", message, "timestamp", ts)

	s.sinkLk.RLock()
	sinks := append([]WaveSink{}, s.sinks...)
	s.sinkLk.RUnlock()
	for _, sink := range sinks {
		sink.PublishWave(s.ctx, rec)
	}
}

// reader returns the active client, or a read-only client when no account is connected.
func (s *Session) reader() (*portal.Client, error) {
	s.lk.Lock()
	client := s.client
	s.lk.Unlock()
	if client != nil {
		return client, nil
	}
	return portal.NewClient(s.cfg, s.backend, nil)
}

// Refresh reloads every wave and the total count from the contract.
func (s *Session) Refresh(ctx context.Context) error {
	client, err := s.reader()
	if err != nil {
		return s.fail("refresh", err)
	}
	if err := s.hydrate(ctx, client); err != nil {
		return s.fail("refresh", err)
	}
	return nil
}

// RefreshCount reloads only the total wave count.
func (s *Session) RefreshCount(ctx context.Context) (uint64, error) {
	client, err := s.reader()
	if err != nil {
		return 0, s.fail("refreshCount", err)
	}
	count, err := client.GetTotalWaves(ctx)
	if err != nil {
		return 0, s.fail("refreshCount", err)
	}
	s.model.SetTotalCount(count)
	return count, nil
}

func (s *Session) SetDraft(message string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.draft = message
}

func (s *Session) Draft() string {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.draft
}

// SendDraft waves with the current draft message.
func (s *Session) SendDraft(ctx context.Context) (*types.Receipt, error) {
	return s.Wave(ctx, s.Draft())
}

// Wave submits message and waits for it to be mined. The mined wave reaches the list
// through the event stream, not through this call.
func (s *Session) Wave(ctx context.Context, message string) (*types.Receipt, error) {
	s.lk.Lock()
	client := s.client
	s.lk.Unlock()
	if client == nil {
		if !s.gateway.HasProvider() {
			return nil, s.fail("wave", types.NewOpError("wave", types.ErrNoProvider, nil))
		}
		return nil, s.fail("wave", types.NewOpError("wave", types.ErrNoProvider, errNotConnected))
	}

	ctx, _ = tag.New(ctx, tag.Upsert(metrics.AccountKey, client.Account().Hex()))

	count, err := client.GetTotalWaves(ctx)
	if err != nil {
		return nil, s.fail("wave", err)
	}
	s.log.Infof("Retrieved total wave count... %d", count)

	handle, err := client.SubmitWave(ctx, message)
	if err != nil {
		s.recordWave(ctx, "rejected")
		return nil, s.fail("wave", err)
	}
	s.log.Infof("Mining... %s", handle.Hash())

	receipt, err := handle.AwaitConfirmation(ctx)
	if err != nil {
		s.recordWave(ctx, "failed")
		return receipt, s.fail("wave", err)
	}
	s.log.Infof("Mined -- %s", handle.Hash())
	s.recordWave(ctx, "mined")

	count, err = client.GetTotalWaves(ctx)
	if err != nil {
		return receipt, s.fail("wave", err)
	}
	s.model.SetTotalCount(count)
	s.log.Infof("Retrieved total wave count... %d", count)
	return receipt, nil
}

func (s *Session) recordWave(ctx context.Context, status string) {
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.StatusKey, status))
	stats.Record(ctx, metrics.WaveSubmitted.M(1))
}

// fail logs err and alerts the user when they can act on it.
func (s *Session) fail(op string, err error) error {
	s.log.Errorf("%s failed: %s", op, err)
	if msg := types.UserMessage(err); msg != "" {
		s.alerter.Alert(msg)
	}
	return err
}

func (s *Session) Account() types.Account {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.account
}

func (s *Session) Connected() bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.client != nil
}

func (s *Session) Waves() []types.WaveRecord {
	return s.model.Records()
}

func (s *Session) TotalWaves() uint64 {
	return s.model.TotalCount()
}

func (s *Session) Status() *types.SessionStatus {
	s.lk.Lock()
	defer s.lk.Unlock()
	return &types.SessionStatus{
		HasProvider: s.gateway.HasProvider(),
		Connected:   s.client != nil,
		Account:     s.account,
		TotalWaves:  s.model.TotalCount(),
		ListedWaves: s.model.Len(),
		ModelState:  s.model.State().String(),
		Draft:       s.draft,
	}
}

// Close releases the subscription. The session must not be used afterwards.
func (s *Session) Close() {
	s.lk.Lock()
	s.closed = true
	s.lk.Unlock()

	s.release()
	s.cancel()
}
