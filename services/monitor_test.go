package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"hotel-monitor/config"
	"hotel-monitor/models"
	"hotel-monitor/notify"
	"hotel-monitor/storage"
	"hotel-monitor/utils"
)

type fakeResolver struct {
	records map[string]models.CheckinRecord
	errs    map[string]error
	panics  map[string]bool
	calls   []string

	delay  time.Duration
	starts []time.Time
	ends   []time.Time
	// onResolve runs after each call is recorded
	onResolve func()
}

func (f *fakeResolver) Resolve(_ context.Context, checkin, checkout string) (models.CheckinRecord, error) {
	f.calls = append(f.calls, checkin+"~"+checkout)
	f.starts = append(f.starts, time.Now())
	defer func() { f.ends = append(f.ends, time.Now()) }()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.onResolve != nil {
		f.onResolve()
	}
	if f.panics[checkin] {
		panic("selector exploded")
	}
	if err := f.errs[checkin]; err != nil {
		return models.CheckinRecord{}, err
	}
	return f.records[checkin], nil
}

type memStore struct {
	snap    models.Snapshot
	saved   models.Snapshot
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (models.Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap.Clone(), nil
}

func (m *memStore) Save(_ context.Context, snap models.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = snap.Clone()
	return nil
}

type recordingHistory struct {
	runs []*models.RunReport
	err  error
}

func (r *recordingHistory) RecordRun(_ context.Context, report *models.RunReport) error {
	r.runs = append(r.runs, report)
	return r.err
}

type sentMessage struct {
	subject, body string
}

type fakeChannel struct {
	sent []sentMessage
	err  error
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Send(_ context.Context, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{subject, body})
	return nil
}

type MonitorTestSuite struct {
	suite.Suite
	cfg      *config.Config
	resolver *fakeResolver
	store    *memStore
	history  *recordingHistory
	channel  *fakeChannel
	clock    *utils.MockClock
}

func (s *MonitorTestSuite) SetupTest() {
	s.cfg = &config.Config{
		Hotel: config.HotelConfig{Name: "Test Hotel", Code: "T1"},
		Monitoring: config.MonitoringConfig{
			CheckinDates: []string{"2026/04/17", "2026/04/18", "2026/04/19"},
			RoomLabel:    "Quad room",
			Currency:     "TWD",
		},
		Schedule: config.ScheduleConfig{
			Timezone:            "Asia/Taipei",
			ReportHours:         []int{6, 18},
			ReportWindowMinutes: 30,
		},
	}
	s.resolver = &fakeResolver{
		records: map[string]models.CheckinRecord{
			"2026/04/17": {IsAvailable: true, Price: models.IntPtr(6800), Currency: models.TWD},
			"2026/04/18": {IsAvailable: false},
		},
	}
	s.store = &memStore{snap: models.Snapshot{
		"2026/04/17": {IsAvailable: false},
		"2026/04/18": {IsAvailable: false},
	}}
	s.history = &recordingHistory{}
	s.channel = &fakeChannel{}
	// 11:00 in Taipei, outside both report windows
	s.clock = utils.NewMockClock(time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC))
}

func (s *MonitorTestSuite) monitor() *Monitor {
	return NewMonitor(s.cfg, s.resolver, s.store, []storage.HistoryRecorder{s.history}, s.channel, s.clock, utils.NewNopLogger())
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func (s *MonitorTestSuite) TestRun_ReleaseNotified() {
	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.Equal([]string{"2026/04/17~2026/04/18", "2026/04/18~2026/04/19"}, s.resolver.calls)
	s.Len(report.Snapshot, 2)
	s.NotContains(report.Snapshot, "2026/04/19")
	s.Equal(report.Snapshot, s.store.saved)

	s.Require().Len(report.Events, 1)
	s.Equal(models.KindRelease, report.Events[0].Kind())
	s.Require().Len(s.channel.sent, 1)
	s.Contains(s.channel.sent[0].body, "2026/04/17")
	s.False(report.DigestSent)
	s.Len(s.history.runs, 1)
	s.NotEmpty(report.RunID)
}

func (s *MonitorTestSuite) TestRun_NoChangesNoMail() {
	s.store.snap = models.Snapshot{
		"2026/04/17": {IsAvailable: true, Price: models.IntPtr(6800), Currency: models.TWD},
	}

	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.Empty(report.Events)
	s.Empty(s.channel.sent)
}

func (s *MonitorTestSuite) TestRun_DigestInReportWindow() {
	// 06:10 in Taipei
	s.clock.Set(time.Date(2026, 4, 9, 22, 10, 0, 0, time.UTC))
	s.store.snap = models.Snapshot{
		"2026/04/17": {IsAvailable: true, Price: models.IntPtr(6800), Currency: models.TWD},
	}

	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.True(report.DigestSent)
	s.Require().Len(s.channel.sent, 1)
	s.Contains(s.channel.sent[0].body, "2026/04/18")
}

func (s *MonitorTestSuite) TestRun_ForcedDigest() {
	report, err := s.monitor().Run(context.Background(), RunOptions{ForceDigest: true})

	s.Require().NoError(err)
	s.True(report.DigestSent)
	s.Len(s.channel.sent, 2)
}

func (s *MonitorTestSuite) TestRun_DateFailuresDoNotAbort() {
	s.resolver.errs = map[string]error{"2026/04/17": errors.New("navigation timeout")}
	s.resolver.panics = map[string]bool{"2026/04/18": true}

	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.Equal(2, report.Failed)
	s.Len(s.resolver.calls, 2)
	for _, date := range []string{"2026/04/17", "2026/04/18"} {
		rec := s.store.saved[date]
		s.False(rec.IsAvailable, date)
		s.NotEmpty(rec.Error, date)
	}
	s.Empty(report.Events)
}

func (s *MonitorTestSuite) TestRun_PriceWithoutCurrencyDropped() {
	s.resolver.records["2026/04/17"] = models.CheckinRecord{IsAvailable: true, Price: models.IntPtr(5000)}

	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.Nil(report.Snapshot["2026/04/17"].Price)
}

func (s *MonitorTestSuite) TestRun_SaveFailureStillNotifies() {
	s.store.saveErr = errors.New("disk full")

	report, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().Error(err)
	s.Contains(err.Error(), "disk full")
	s.Require().NotNil(report)
	s.Len(s.channel.sent, 1)
}

func (s *MonitorTestSuite) TestRun_LoadFailureIsFatal() {
	s.store.loadErr = errors.New("corrupt state")

	_, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().Error(err)
	s.Empty(s.resolver.calls)
	s.Empty(s.channel.sent)
}

func (s *MonitorTestSuite) TestRun_NotificationFailuresSwallowed() {
	s.channel.err = notify.ErrNotConfigured
	s.history.err = errors.New("db down")

	report, err := s.monitor().Run(context.Background(), RunOptions{ForceDigest: true})

	s.Require().NoError(err)
	s.False(report.DigestSent)
	s.NotNil(s.store.saved)
}

func (s *MonitorTestSuite) TestInReportWindow() {
	loc, err := time.LoadLocation("Asia/Taipei")
	s.Require().NoError(err)
	hours := []int{6, 18}

	s.True(InReportWindow(time.Date(2026, 4, 10, 6, 0, 0, 0, loc), hours, 30))
	s.True(InReportWindow(time.Date(2026, 4, 10, 18, 29, 59, 0, loc), hours, 30))
	s.False(InReportWindow(time.Date(2026, 4, 10, 18, 30, 0, 0, loc), hours, 30))
	s.False(InReportWindow(time.Date(2026, 4, 10, 5, 59, 0, 0, loc), hours, 30))
	s.False(InReportWindow(time.Date(2026, 4, 10, 12, 0, 0, 0, loc), nil, 30))
}

func (s *MonitorTestSuite) TestRun_DelayBetweenDates() {
	s.cfg.Scraper.RequestDelayMs = 60
	s.resolver.delay = 100 * time.Millisecond

	_, err := s.monitor().Run(context.Background(), RunOptions{})

	s.Require().NoError(err)
	s.Require().Len(s.resolver.starts, 2)
	gap := s.resolver.starts[1].Sub(s.resolver.ends[0])
	s.GreaterOrEqual(gap, 55*time.Millisecond, "no pause between the end of one date and the next")
}

func (s *MonitorTestSuite) TestRun_HistoryRecordsEventCount() {
	db, err := storage.NewSQLHistory("sqlite://"+filepath.Join(s.T().TempDir(), "history.db"), utils.NewNopLogger())
	s.Require().NoError(err)
	defer db.Close()
	s.Require().NoError(db.CreateTable(context.Background()))

	m := NewMonitor(s.cfg, s.resolver, s.store, []storage.HistoryRecorder{db}, s.channel, s.clock, utils.NewNopLogger())
	report, err := m.Run(context.Background(), RunOptions{})
	s.Require().NoError(err)
	s.Require().Len(report.Events, 1)

	runs, err := db.RecentRuns(context.Background(), 5)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(report.RunID, runs[0].RunID)
	s.Equal(len(report.Events), runs[0].Events)
	s.Equal(1, runs[0].Available)
}

func (s *MonitorTestSuite) TestRun_InterruptedKeepsPreviousState() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.resolver.onResolve = cancel

	report, err := s.monitor().Run(ctx, RunOptions{ForceDigest: true})

	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
	s.Require().NotNil(report)
	s.Len(s.resolver.calls, 1, "no further dates after interruption")
	s.Nil(s.store.saved)
	s.Empty(s.history.runs)
	s.Empty(s.channel.sent)
}
