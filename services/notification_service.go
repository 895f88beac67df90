package services

import (
	"fmt"
	"log"

	"stock_api_backend/config"

	"gopkg.in/gomail.v2"
)

// NotificationService sends operational mail for pipeline lifecycle
// events. Sends are fire-and-forget: a mail failure is logged and never
// fails the pipeline.
type NotificationService struct {
	dialer  *gomail.Dialer
	from    string
	to      string
	enabled bool
}

// Global notification service instance
var GlobalNotificationService *NotificationService

// InitNotificationService initializes the notification service from config
func InitNotificationService() {
	cfg := config.AppConfig

	if cfg.SMTPHost == "" || cfg.NotifyFrom == "" || cfg.NotifyTo == "" {
		log.Println("SMTP not configured, notifications disabled")
		GlobalNotificationService = &NotificationService{}
		return
	}

	GlobalNotificationService = &NotificationService{
		dialer:  gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:    cfg.NotifyFrom,
		to:      cfg.NotifyTo,
		enabled: true,
	}

	log.Printf("Notification service initialized (to: %s)", cfg.NotifyTo)
}

// IsEnabled reports whether notifications are configured.
func (ns *NotificationService) IsEnabled() bool {
	return ns != nil && ns.enabled
}

// Notify sends a mail in the background.
func (ns *NotificationService) Notify(subject, body string) {
	if !ns.IsEnabled() {
		log.Printf("Notification (disabled): %s", subject)
		return
	}

	go func() {
		msg := gomail.NewMessage()
		msg.SetHeader("From", ns.from)
		msg.SetHeader("To", ns.to)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)

		if err := ns.dialer.DialAndSend(msg); err != nil {
			log.Printf("Failed to send notification %q: %v", subject, err)
		}
	}()
}

// NotifyError sends a failure mail with the error detail.
func (ns *NotificationService) NotifyError(subject string, err error) {
	ns.Notify(subject, fmt.Sprintf("%s\n\nError: %v", subject, err))
}
