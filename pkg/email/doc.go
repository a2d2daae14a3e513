// Package email sends transactional email through a provider-agnostic
// EmailSender, with a Postmark implementation for production and DevSender
// for local runs.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:     "jane@example.com",
//		SendToName: "Jane",
//		Subject:    "Reminder",
//		BodyHTML:   html,
//		BodyText:   text,
//	})
//
// Errors wrap ErrInvalidParams, ErrInvalidConfig or ErrFailedToSendEmail;
// ErrRecipientRejected is joined in when the provider refuses the address,
// which callers treat as not worth retrying.
//
// The templates subpackage renders templ components to the HTML body.
package email
