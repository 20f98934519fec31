package worker

import (
	"context"
	"testing"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	contextutils "evolveedu/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkerService struct {
	settings     map[string]string
	statuses     map[string]*models.WorkerStatus
	globalPaused bool
	heartbeats   int
}

func newStubWorkerService() *stubWorkerService {
	return &stubWorkerService{
		settings: make(map[string]string),
		statuses: make(map[string]*models.WorkerStatus),
	}
}

func (s *stubWorkerService) GetSetting(_ context.Context, key string) (string, error) {
	val, ok := s.settings[key]
	if !ok {
		return "", services.ErrSettingNotFound
	}
	return val, nil
}

func (s *stubWorkerService) SetSetting(_ context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}

func (s *stubWorkerService) IsGlobalPaused(_ context.Context) (bool, error) {
	return s.globalPaused, nil
}

func (s *stubWorkerService) SetGlobalPause(_ context.Context, paused bool) error {
	s.globalPaused = paused
	return nil
}

func (s *stubWorkerService) UpdateWorkerStatus(_ context.Context, instance string, status *models.WorkerStatus) error {
	copied := *status
	s.statuses[instance] = &copied
	return nil
}

func (s *stubWorkerService) GetWorkerStatus(_ context.Context, instance string) (*models.WorkerStatus, error) {
	status, ok := s.statuses[instance]
	if !ok {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "worker status not found")
	}
	return status, nil
}

func (s *stubWorkerService) GetAllWorkerStatuses(_ context.Context) ([]models.WorkerStatus, error) {
	var all []models.WorkerStatus
	for _, status := range s.statuses {
		all = append(all, *status)
	}
	return all, nil
}

func (s *stubWorkerService) UpdateHeartbeat(_ context.Context, instance string) error {
	s.heartbeats++
	return nil
}

func (s *stubWorkerService) IsWorkerHealthy(_ context.Context, instance string) (bool, error) {
	_, ok := s.statuses[instance]
	return ok, nil
}

func (s *stubWorkerService) PauseWorker(_ context.Context, instance string) error {
	if status, ok := s.statuses[instance]; ok {
		status.IsPaused = true
	} else {
		s.statuses[instance] = &models.WorkerStatus{WorkerInstance: instance, IsPaused: true}
	}
	return nil
}

func (s *stubWorkerService) ResumeWorker(_ context.Context, instance string) error {
	if status, ok := s.statuses[instance]; ok {
		status.IsPaused = false
	}
	return nil
}

func (s *stubWorkerService) GetWorkerHealth(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"global_paused": s.globalPaused}, nil
}

type stubReminderService struct {
	due        []services.MilestoneReminder
	listErr    error
	markedSent []int
	markErr    error
}

func (s *stubReminderService) ListDueMilestoneReminders(_ context.Context, _ time.Duration) ([]services.MilestoneReminder, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.due, nil
}

func (s *stubReminderService) MarkReminderSent(_ context.Context, milestoneID int) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedSent = append(s.markedSent, milestoneID)
	return nil
}

type stubMailer struct {
	sentTo  []string
	sendErr error
}

func (m *stubMailer) SendMilestoneReminder(_ context.Context, to string, _ *models.Roadmap, _ *models.Milestone) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentTo = append(m.sentTo, to)
	return nil
}

func (m *stubMailer) SendEmail(_ context.Context, to, _, _ string, _ map[string]interface{}) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentTo = append(m.sentTo, to)
	return nil
}

func (m *stubMailer) IsEnabled() bool { return true }

func workerTestConfig() *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			Enabled: true,
			MilestoneReminder: config.MilestoneReminderConfig{
				Enabled:     true,
				WindowHours: 48,
			},
		},
	}
}

func newTestWorker(workerService services.WorkerServiceInterface, reminderService services.ReminderServiceInterface, mail *stubMailer, cfg *config.Config) *Worker {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewWorker(workerService, reminderService, mail, "test-instance", cfg, logger)
}

func dueReminder(milestoneID int, email string) services.MilestoneReminder {
	return services.MilestoneReminder{
		Roadmap:   models.Roadmap{ID: 1, Subject: "Machine Learning", Title: "ML in 6 months"},
		Milestone: models.Milestone{ID: milestoneID, RoadmapID: 1, Title: "Finish linear algebra"},
		Email:     email,
	}
}

func TestNewWorker_DefaultsInstanceName(t *testing.T) {
	w := newTestWorker(newStubWorkerService(), &stubReminderService{}, &stubMailer{}, workerTestConfig())
	assert.Equal(t, "test-instance", w.GetInstance())

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	unnamed := NewWorker(newStubWorkerService(), &stubReminderService{}, &stubMailer{}, "", workerTestConfig(), logger)
	assert.Equal(t, "default", unnamed.GetInstance())
}

func TestProcessMilestoneReminders_SendsAndMarks(t *testing.T) {
	reminders := &stubReminderService{
		due: []services.MilestoneReminder{
			dueReminder(10, "a@example.com"),
			dueReminder(11, "b@example.com"),
		},
	}
	mail := &stubMailer{}
	w := newTestWorker(newStubWorkerService(), reminders, mail, workerTestConfig())

	details, err := w.processMilestoneReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sent 2 of 2 due milestone reminders", details)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mail.sentTo)
	assert.Equal(t, []int{10, 11}, reminders.markedSent)
	assert.Equal(t, 2, w.TotalRemindersSent())
}

func TestProcessMilestoneReminders_Disabled(t *testing.T) {
	cfg := workerTestConfig()
	cfg.Email.MilestoneReminder.Enabled = false
	reminders := &stubReminderService{due: []services.MilestoneReminder{dueReminder(10, "a@example.com")}}
	mail := &stubMailer{}
	w := newTestWorker(newStubWorkerService(), reminders, mail, cfg)

	details, err := w.processMilestoneReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Milestone reminders disabled", details)
	assert.Empty(t, mail.sentTo)
}

func TestProcessMilestoneReminders_NoneDue(t *testing.T) {
	w := newTestWorker(newStubWorkerService(), &stubReminderService{}, &stubMailer{}, workerTestConfig())

	details, err := w.processMilestoneReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No milestone reminders due", details)
	assert.Equal(t, 0, w.TotalRemindersSent())
}

func TestProcessMilestoneReminders_SendFailureDoesNotMark(t *testing.T) {
	reminders := &stubReminderService{due: []services.MilestoneReminder{dueReminder(10, "a@example.com")}}
	mail := &stubMailer{sendErr: assertAnError()}
	w := newTestWorker(newStubWorkerService(), reminders, mail, workerTestConfig())

	details, err := w.processMilestoneReminders(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "Sent 0 of 1 due milestone reminders", details)
	assert.Empty(t, reminders.markedSent)
	assert.Equal(t, 0, w.TotalRemindersSent())
}

func TestCheckPauseStatus(t *testing.T) {
	ws := newStubWorkerService()
	w := newTestWorker(ws, &stubReminderService{}, &stubMailer{}, workerTestConfig())
	ctx := context.Background()

	paused, reason := w.checkPauseStatus(ctx)
	assert.False(t, paused)
	assert.Empty(t, reason)

	ws.globalPaused = true
	paused, reason = w.checkPauseStatus(ctx)
	assert.True(t, paused)
	assert.Equal(t, "Globally paused", reason)

	ws.globalPaused = false
	require.NoError(t, ws.PauseWorker(ctx, "test-instance"))
	paused, reason = w.checkPauseStatus(ctx)
	assert.True(t, paused)
	assert.Equal(t, "Worker instance paused", reason)
}

func TestPauseAndResume(t *testing.T) {
	ws := newStubWorkerService()
	w := newTestWorker(ws, &stubReminderService{}, &stubMailer{}, workerTestConfig())
	ctx := context.Background()

	w.Pause(ctx)
	assert.True(t, w.GetStatus().IsPaused)
	status, err := ws.GetWorkerStatus(ctx, "test-instance")
	require.NoError(t, err)
	assert.True(t, status.IsPaused)

	w.Resume(ctx)
	assert.False(t, w.GetStatus().IsPaused)
	status, err = ws.GetWorkerStatus(ctx, "test-instance")
	require.NoError(t, err)
	assert.False(t, status.IsPaused)
}

func TestRunRecordsHistory(t *testing.T) {
	reminders := &stubReminderService{due: []services.MilestoneReminder{dueReminder(10, "a@example.com")}}
	w := newTestWorker(newStubWorkerService(), reminders, &stubMailer{}, workerTestConfig())

	w.run()

	history := w.GetHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "Success", history[0].Status)
	assert.Contains(t, history[0].Details, "Sent 1 of 1")
}

func TestRunSkipsWhenGloballyPaused(t *testing.T) {
	ws := newStubWorkerService()
	ws.globalPaused = true
	reminders := &stubReminderService{due: []services.MilestoneReminder{dueReminder(10, "a@example.com")}}
	mail := &stubMailer{}
	w := newTestWorker(ws, reminders, mail, workerTestConfig())

	w.run()

	assert.Empty(t, mail.sentTo)
	assert.Empty(t, w.GetHistory())
	assert.Equal(t, "Globally paused", w.GetStatus().CurrentActivity)
}

func TestActivityLogBufferBounded(t *testing.T) {
	w := newTestWorker(newStubWorkerService(), &stubReminderService{}, &stubMailer{}, workerTestConfig())

	for i := 0; i < maxActivityLogs+25; i++ {
		w.logActivity("INFO", "entry")
	}

	assert.Len(t, w.GetActivityLogs(), maxActivityLogs)
}

func TestShutdownClearsActivityLogs(t *testing.T) {
	w := newTestWorker(newStubWorkerService(), &stubReminderService{}, &stubMailer{}, workerTestConfig())
	w.logActivity("INFO", "entry")

	require.NoError(t, w.Shutdown(context.Background()))
	assert.Empty(t, w.GetActivityLogs())
}

func assertAnError() error {
	return contextutils.ErrorWithContextf("smtp connection refused")
}
