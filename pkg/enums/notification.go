package enums

import "slices"

// NotificationChannel selects the delivery provider.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelSMS      NotificationChannel = "sms"
	ChannelWhatsApp NotificationChannel = "whatsapp"
	ChannelSlack    NotificationChannel = "slack"
)

var validNotificationChannels = []NotificationChannel{
	ChannelEmail,
	ChannelSMS,
	ChannelWhatsApp,
	ChannelSlack,
}

// IsValid checks whether the channel has a provider.
func (c NotificationChannel) IsValid() bool {
	return slices.Contains(validNotificationChannels, c)
}

// ParseNotificationChannel converts raw strings into NotificationChannel.
func ParseNotificationChannel(value string) (NotificationChannel, error) {
	return parse("notification channel", value, validNotificationChannels)
}

// DeliveryStatus tracks a notification_deliveries row.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusDead    DeliveryStatus = "dead"
)

// NotificationTemplate keys the embedded message templates.
type NotificationTemplate string

const (
	TemplateTimesheetApproved      NotificationTemplate = "timesheet_approved"
	TemplateTimesheetNeedsReview   NotificationTemplate = "timesheet_needs_review"
	TemplateNoShowReminder         NotificationTemplate = "no_show_reminder"
	TemplateNoShowAdminAlert       NotificationTemplate = "no_show_admin_alert"
	TemplateReplacementBroadcast   NotificationTemplate = "replacement_broadcast"
	TemplateUrgentShiftBroadcast   NotificationTemplate = "urgent_shift_broadcast"
	TemplateUnfilledShiftEscalated NotificationTemplate = "unfilled_shift_escalated"
	TemplateShiftReminder24h       NotificationTemplate = "shift_reminder_24h"
	TemplateShiftReminder2h        NotificationTemplate = "shift_reminder_2h"
)
