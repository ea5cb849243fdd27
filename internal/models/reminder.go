package models

import "time"

// ReminderType identifies the lead-time offset a reminder fires at.
type ReminderType string

const (
	Reminder24h    ReminderType = "24h"
	Reminder2h     ReminderType = "2h"
	Reminder30m    ReminderType = "30m"
	ReminderCustom ReminderType = "custom"
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// ReminderStatus tracks a reminder log row's dispatch state.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ReminderOffset pairs a reminder type with its lead time.
type ReminderOffset struct {
	Type ReminderType
	Lead time.Duration
}

// ReminderPreference stores one user's reminder configuration.
type ReminderPreference struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`

	EmailEnabled bool `db:"email_enabled" json:"email_enabled"`
	SMSEnabled   bool `db:"sms_enabled" json:"sms_enabled"`
	PushEnabled  bool `db:"push_enabled" json:"push_enabled"`

	Reminder24h           bool `db:"reminder_24h" json:"reminder_24h"`
	Reminder2h            bool `db:"reminder_2h" json:"reminder_2h"`
	Reminder30m           bool `db:"reminder_30m" json:"reminder_30m"`
	ReminderCustomMinutes *int `db:"reminder_custom_minutes" json:"reminder_custom_minutes,omitempty"`

	DNDEnabled bool    `db:"dnd_enabled" json:"dnd_enabled"`
	DNDStart   *string `db:"dnd_start" json:"dnd_start,omitempty"`
	DNDEnd     *string `db:"dnd_end" json:"dnd_end,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultReminderPreference mirrors the defaults applied for users who never
// configured reminders: email and push on, all fixed offsets on, no DND.
func DefaultReminderPreference(userID string) *ReminderPreference {
	return &ReminderPreference{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		Reminder24h:  true,
		Reminder2h:   true,
		Reminder30m:  true,
	}
}

// EnabledOffsets lists the lead times this user wants reminders at.
func (p *ReminderPreference) EnabledOffsets() []ReminderOffset {
	var offsets []ReminderOffset
	if p.Reminder24h {
		offsets = append(offsets, ReminderOffset{Type: Reminder24h, Lead: 24 * time.Hour})
	}
	if p.Reminder2h {
		offsets = append(offsets, ReminderOffset{Type: Reminder2h, Lead: 2 * time.Hour})
	}
	if p.Reminder30m {
		offsets = append(offsets, ReminderOffset{Type: Reminder30m, Lead: 30 * time.Minute})
	}
	if p.ReminderCustomMinutes != nil && *p.ReminderCustomMinutes > 0 {
		offsets = append(offsets, ReminderOffset{
			Type: ReminderCustom,
			Lead: time.Duration(*p.ReminderCustomMinutes) * time.Minute,
		})
	}
	return offsets
}

// EnabledChannels lists the delivery channels this user accepts.
func (p *ReminderPreference) EnabledChannels() []Channel {
	var channels []Channel
	if p.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if p.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}
	if p.PushEnabled {
		channels = append(channels, ChannelPush)
	}
	return channels
}

// InDND reports whether the given local wall-clock time falls inside the
// user's do-not-disturb window. Windows may wrap midnight.
func (p *ReminderPreference) InDND(local time.Time) bool {
	if !p.DNDEnabled || p.DNDStart == nil || p.DNDEnd == nil {
		return false
	}
	start, err := MinutesOfDay(*p.DNDStart)
	if err != nil {
		return false
	}
	end, err := MinutesOfDay(*p.DNDEnd)
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// DNDEndsAt returns the next instant the DND window closes at or after t.
func (p *ReminderPreference) DNDEndsAt(local time.Time) time.Time {
	if p.DNDEnd == nil {
		return local
	}
	end, err := MinutesOfDay(*p.DNDEnd)
	if err != nil {
		return local
	}
	candidate := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, local.Location())
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// ReminderLog records one dispatch attempt target. The unique tuple
// (session, user, type, channel) is the exactly-once guard.
type ReminderLog struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"session_id"`
	UserID    string `db:"user_id" json:"user_id"`

	Type    ReminderType `db:"reminder_type" json:"reminder_type"`
	Channel Channel      `db:"channel" json:"channel"`

	Status       ReminderStatus `db:"status" json:"status"`
	SentAt       *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`

	OpenedAt  *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
