package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/notify"
	"github.com/spayyavula/campuspandit-sub007/pkg/clock"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
	"github.com/spayyavula/campuspandit-sub007/pkg/jobs"
)

type reminderPrefRepo interface {
	GetPreference(ctx context.Context, userID string) (*models.ReminderPreference, error)
	UpsertPreference(ctx context.Context, pref *models.ReminderPreference) error
}

type reminderLogRepo interface {
	InsertLog(ctx context.Context, log *models.ReminderLog) (bool, error)
	FindLog(ctx context.Context, sessionID, userID string, typ models.ReminderType, channel models.Channel) (*models.ReminderLog, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ReminderLog, error)
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, message string) error
	MarkCancelled(ctx context.Context, id string) error
	CancelBySession(ctx context.Context, sessionID string) error
	MarkOpened(ctx context.Context, id string, at time.Time) error
	MarkClicked(ctx context.Context, id string, at time.Time) error
}

type upcomingSessionLister interface {
	ListUpcoming(ctx context.Context, after, until time.Time) ([]models.Session, error)
}

type reminderMetrics interface {
	ObserveReminder(status string)
}

// maxReminderLead bounds custom offsets so the scanner's working-set window
// stays finite.
const maxReminderLead = 24 * time.Hour

// DispatchTask is the payload carried through the dispatch queue: one
// reminder log row plus the session it belongs to.
type DispatchTask struct {
	Log     models.ReminderLog
	Session models.Session
}

// PreferencesRequest updates a user's reminder configuration.
type PreferencesRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
	PushEnabled  bool `json:"push_enabled"`

	Reminder24h           bool `json:"reminder_24h"`
	Reminder2h            bool `json:"reminder_2h"`
	Reminder30m           bool `json:"reminder_30m"`
	ReminderCustomMinutes *int `json:"reminder_custom_minutes" validate:"omitempty,min=5,max=1440"`

	DNDEnabled bool    `json:"dnd_enabled"`
	DNDStart   *string `json:"dnd_start"`
	DNDEnd     *string `json:"dnd_end"`
}

// ReminderService scans upcoming sessions for due reminders and dispatches
// them through a retrying worker queue. The reminder log's unique tuple
// makes recording exactly-once even though delivery is at-least-once.
type ReminderService struct {
	prefs    reminderPrefRepo
	logs     reminderLogRepo
	sessions upcomingSessionLister
	notifier notify.Notifier

	queue     *jobs.Queue
	clock     clock.Clock
	cfg       config.RemindersConfig
	metrics   reminderMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReminderService builds the service and its dispatch queue. metrics may
// be nil.
func NewReminderService(
	prefs reminderPrefRepo,
	logs reminderLogRepo,
	sessions upcomingSessionLister,
	notifier notify.Notifier,
	cfg config.RemindersConfig,
	clk clock.Clock,
	metrics reminderMetrics,
	logger *zap.Logger,
) *ReminderService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = 15 * time.Minute
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 5 * time.Second
	}

	s := &ReminderService{
		prefs:     prefs,
		logs:      logs,
		sessions:  sessions,
		notifier:  notifier,
		clock:     clk,
		cfg:       cfg,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
	}
	s.queue = jobs.NewQueue("reminder-dispatch", s.handleDispatchJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *ReminderService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *ReminderService) Stop() {
	s.queue.Stop()
}

// GetPreferences returns the stored preference or the platform defaults for
// users who never configured reminders.
func (s *ReminderService) GetPreferences(ctx context.Context, userID string) (*models.ReminderPreference, error) {
	pref, err := s.prefs.GetPreference(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.DefaultReminderPreference(userID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reminder preferences")
	}
	return pref, nil
}

// UpdatePreferences validates and stores the user's configuration.
func (s *ReminderService) UpdatePreferences(ctx context.Context, userID string, req PreferencesRequest) (*models.ReminderPreference, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder preferences")
	}
	if req.DNDEnabled {
		if req.DNDStart == nil || req.DNDEnd == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dnd_start and dnd_end are required when DND is enabled")
		}
		if _, err := models.MinutesOfDay(*req.DNDStart); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dnd_start must be HH:MM")
		}
		if _, err := models.MinutesOfDay(*req.DNDEnd); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dnd_end must be HH:MM")
		}
	}

	pref := &models.ReminderPreference{
		UserID:                userID,
		EmailEnabled:          req.EmailEnabled,
		SMSEnabled:            req.SMSEnabled,
		PushEnabled:           req.PushEnabled,
		Reminder24h:           req.Reminder24h,
		Reminder2h:            req.Reminder2h,
		Reminder30m:           req.Reminder30m,
		ReminderCustomMinutes: req.ReminderCustomMinutes,
		DNDEnabled:            req.DNDEnabled,
		DNDStart:              req.DNDStart,
		DNDEnd:                req.DNDEnd,
	}
	if err := s.prefs.UpsertPreference(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reminder preferences")
	}
	return pref, nil
}

// ListBySession returns a session's reminder log.
func (s *ReminderService) ListBySession(ctx context.Context, sessionID string) ([]models.ReminderLog, error) {
	logsRows, err := s.logs.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminders")
	}
	return logsRows, nil
}

// CancelBySession drops every still-pending reminder for a session.
func (s *ReminderService) CancelBySession(ctx context.Context, sessionID string) error {
	return s.logs.CancelBySession(ctx, sessionID)
}

// RecordOpen stamps open telemetry on a sent reminder.
func (s *ReminderService) RecordOpen(ctx context.Context, reminderID string) error {
	if err := s.logs.MarkOpened(ctx, reminderID, s.clock.Now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record open")
	}
	return nil
}

// RecordClick stamps click telemetry on a sent reminder.
func (s *ReminderService) RecordClick(ctx context.Context, reminderID string) error {
	if err := s.logs.MarkClicked(ctx, reminderID, s.clock.Now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record click")
	}
	return nil
}

// Scan walks upcoming sessions, materialises due reminder log rows and
// enqueues dispatch tasks. It returns the number of tasks enqueued. Safe to
// run concurrently: the log's unique tuple and the guarded MarkSent make
// duplicate work harmless.
func (s *ReminderService) Scan(ctx context.Context) (int, error) {
	tasks, err := s.collectDue(ctx)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, task := range tasks {
		if err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    "dispatch",
			Payload: task,
		}); err != nil {
			return enqueued, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue reminder dispatch")
		}
		enqueued++
	}
	return enqueued, nil
}

// collectDue finds every reminder that should be dispatched right now.
func (s *ReminderService) collectDue(ctx context.Context) ([]DispatchTask, error) {
	now := s.clock.Now()
	horizon := now.Add(maxReminderLead + s.cfg.RetryWindow)

	sessions, err := s.sessions.ListUpcoming(ctx, now, horizon)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming sessions")
	}

	var tasks []DispatchTask
	for i := range sessions {
		session := &sessions[i]
		for _, userID := range []string{session.StudentID, session.TutorID} {
			due, err := s.scanParticipant(ctx, session, userID, now)
			if err != nil {
				s.logger.Error("reminder scan failed for participant",
					zap.String("session_id", session.ID),
					zap.String("user_id", userID),
					zap.Error(err))
				continue
			}
			tasks = append(tasks, due...)
		}
	}
	return tasks, nil
}

func (s *ReminderService) scanParticipant(ctx context.Context, session *models.Session, userID string, now time.Time) ([]DispatchTask, error) {
	pref, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	var tasks []DispatchTask
	for _, offset := range pref.EnabledOffsets() {
		lead := offset.Lead
		if lead > maxReminderLead {
			lead = maxReminderLead
		}
		due := session.ScheduledStart.Add(-lead)
		if now.Before(due) {
			continue
		}
		expired := now.After(due.Add(s.cfg.RetryWindow))

		for _, channel := range pref.EnabledChannels() {
			target, active, err := s.ensureLog(ctx, session, userID, offset.Type, channel)
			if err != nil {
				return tasks, err
			}
			if !active {
				continue
			}

			if expired {
				// Too late for this offset: never send stale reminders.
				s.cancelLog(ctx, target.ID)
				continue
			}

			if deferOrCancel := s.applyDND(ctx, pref, session, channel, now, target.ID); deferOrCancel {
				continue
			}

			tasks = append(tasks, DispatchTask{Log: *target, Session: *session})
		}
	}
	return tasks, nil
}

// ensureLog creates the log row or fetches the existing one. active=false
// means the reminder already reached a final state.
func (s *ReminderService) ensureLog(ctx context.Context, session *models.Session, userID string, typ models.ReminderType, channel models.Channel) (*models.ReminderLog, bool, error) {
	row := &models.ReminderLog{
		SessionID: session.ID,
		UserID:    userID,
		Type:      typ,
		Channel:   channel,
		Status:    models.ReminderPending,
	}
	created, err := s.logs.InsertLog(ctx, row)
	if err != nil {
		return nil, false, err
	}
	if created {
		return row, true, nil
	}
	existing, err := s.logs.FindLog(ctx, session.ID, userID, typ, channel)
	if err != nil {
		return nil, false, err
	}
	if existing.Status == models.ReminderSent || existing.Status == models.ReminderCancelled {
		return existing, false, nil
	}
	return existing, true, nil
}

// applyDND defers quiet-hour channels. Email is exempt. When the DND window
// would outlast the session start the reminder is moot and gets cancelled.
// Returns true when the reminder must not be dispatched now.
func (s *ReminderService) applyDND(ctx context.Context, pref *models.ReminderPreference, session *models.Session, channel models.Channel, now time.Time, logID string) bool {
	if channel == models.ChannelEmail {
		return false
	}
	loc, err := time.LoadLocation(session.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if !pref.InDND(local) {
		return false
	}
	if pref.DNDEndsAt(local).After(session.ScheduledStart.In(loc)) {
		s.cancelLog(ctx, logID)
	}
	return true
}

func (s *ReminderService) cancelLog(ctx context.Context, id string) {
	if err := s.logs.MarkCancelled(ctx, id); err != nil {
		s.logger.Warn("failed to cancel reminder", zap.String("reminder_id", id), zap.Error(err))
		return
	}
	s.observe("cancelled")
}

func (s *ReminderService) handleDispatchJob(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(DispatchTask)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.Dispatch(ctx, task)
}

// Dispatch delivers one reminder and records the outcome. Only the first
// successful delivery wins the sent transition; failures are recorded and
// retried by the queue.
func (s *ReminderService) Dispatch(ctx context.Context, task DispatchTask) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	err := s.notifier.Send(sendCtx, notify.Message{
		ReminderID: task.Log.ID,
		SessionID:  task.Session.ID,
		UserID:     task.Log.UserID,
		Type:       task.Log.Type,
		Channel:    task.Log.Channel,
		Subject:    task.Session.Subject,
		StartsAt:   task.Session.ScheduledStart,
		Timezone:   task.Session.Timezone,
	})
	if err != nil {
		if markErr := s.logs.MarkFailed(ctx, task.Log.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to record dispatch failure", zap.String("reminder_id", task.Log.ID), zap.Error(markErr))
		}
		s.observe("failed")
		return appErrors.Wrap(err, appErrors.ErrDispatch.Code, appErrors.ErrDispatch.Status, "reminder dispatch failed")
	}

	won, err := s.logs.MarkSent(ctx, task.Log.ID, s.clock.Now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sent reminder")
	}
	if won {
		s.observe("sent")
		s.logger.Info("reminder sent",
			zap.String("reminder_id", task.Log.ID),
			zap.String("session_id", task.Session.ID),
			zap.String("channel", string(task.Log.Channel)))
	}
	return nil
}

func (s *ReminderService) observe(status string) {
	if s.metrics != nil {
		s.metrics.ObserveReminder(status)
	}
}
