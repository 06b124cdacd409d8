package notifications

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

// StaffRecipients addresses a staff member on each requested channel they have contact details for.
func StaffRecipients(staff models.Staff, channels ...enums.NotificationChannel) []payloads.Recipient {
	out := make([]payloads.Recipient, 0, len(channels))
	for _, channel := range channels {
		var address *string
		switch channel {
		case enums.ChannelEmail:
			address = staff.Email
		case enums.ChannelSMS:
			address = staff.Phone
		case enums.ChannelWhatsApp:
			address = staff.WhatsApp
			if blank(address) {
				address = staff.Phone
			}
		}
		if blank(address) {
			continue
		}
		out = append(out, payloads.Recipient{
			Channel: channel,
			Address: strings.TrimSpace(*address),
			Name:    staff.FullName(),
		})
	}
	return out
}

// AdminRecipients addresses agency admins; slack uses the admin's Slack member id.
func AdminRecipients(admins []models.User, channels ...enums.NotificationChannel) []payloads.Recipient {
	out := make([]payloads.Recipient, 0, len(admins)*len(channels))
	for _, admin := range admins {
		for _, channel := range channels {
			var address *string
			switch channel {
			case enums.ChannelEmail:
				email := admin.Email
				address = &email
			case enums.ChannelSMS, enums.ChannelWhatsApp:
				address = admin.Phone
			case enums.ChannelSlack:
				address = admin.SlackUserID
			}
			if blank(address) {
				continue
			}
			out = append(out, payloads.Recipient{
				Channel: channel,
				Address: strings.TrimSpace(*address),
				Name:    admin.FullName(),
			})
		}
	}
	return out
}

// SlackAlert targets the configured ops channel; the provider fills in the channel id.
func SlackAlert() payloads.Recipient {
	return payloads.Recipient{Channel: enums.ChannelSlack, Address: SlackDefaultChannel, Name: "ops"}
}

// NewRequest builds a notification.requested event. It reports false when there is nobody to notify.
func NewRequest(agencyID uuid.UUID, template enums.NotificationTemplate, recipients []payloads.Recipient, vars map[string]string, reason string) (outbox.DomainEvent, bool) {
	if len(recipients) == 0 {
		return outbox.DomainEvent{}, false
	}
	return outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Actor:         outbox.SystemActor(agencyID),
		Data: payloads.NotificationRequestedEvent{
			AgencyID:   agencyID,
			Template:   template,
			Recipients: recipients,
			Vars:       vars,
			Reason:     reason,
		},
	}, true
}

func blank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}
