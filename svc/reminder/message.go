package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/wavespoole/carwash/pkg/email/templates"
)

// Subject is the reminder email subject line.
const Subject = "Reminder: Your Car Wash Appointment is Tomorrow"

// Message is a rendered reminder.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// RenderMessage renders the reminder for snap. The HTML body comes from the
// reminderHTML component in reminder.templ, which escapes snapshot values.
func RenderMessage(ctx context.Context, snap Snapshot, biz BusinessProfile) (Message, error) {
	html, err := templates.Render(ctx, reminderHTML(snap, biz))
	if err != nil {
		return Message{}, fmt.Errorf("render reminder html: %w", err)
	}
	return Message{
		Subject: Subject,
		HTML:    html,
		Text:    reminderText(snap, biz),
	}, nil
}

func reminderText(snap Snapshot, biz BusinessProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\n", snap.CustomerName)
	b.WriteString("Just a quick reminder that you've got a car wash booking with us tomorrow.\n\n")
	b.WriteString("Here are your appointment details:\n\n")

	b.WriteString("Location:\n")
	b.WriteString(biz.Name)
	for i, line := range biz.AddressLines {
		if i == 0 {
			b.WriteString(" - " + line)
			continue
		}
		b.WriteString("\n" + line)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Vehicle: %s\n", snap.Vehicle())
	fmt.Fprintf(&b, "Package: %s\n", snap.PackageName)
	fmt.Fprintf(&b, "Extras: %s\n", snap.ExtrasList())
	fmt.Fprintf(&b, "Date & Time: %s at %s\n", snap.Date, snap.Time)
	if snap.EstimatedTime != "" {
		fmt.Fprintf(&b, "Estimated Duration: %s\n", snap.EstimatedTime)
	}

	fmt.Fprintf(&b, "\nIf you need to cancel or reschedule, please give us a call on %s.\n\n", biz.Phone)
	b.WriteString("We'll see you then, your car's in good hands.\n\n")
	fmt.Fprintf(&b, "Best,\n%s\n", biz.SignOff)

	return b.String()
}
