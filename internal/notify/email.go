package notify

import (
	"fmt"
	"log"

	"github.com/nadmax/profiledash/internal/task"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier mails terminal task transitions to an operator address via
// SendGrid. Pending and running transitions are too chatty for email and are
// dropped. Action callbacks are never invoked here; email is delivery only.
type EmailNotifier struct {
	apiKey      string
	fromName    string
	fromAddress string
	toAddress   string
}

func NewEmailNotifier(apiKey, fromName, fromAddress, toAddress string) *EmailNotifier {
	return &EmailNotifier{
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		toAddress:   toAddress,
	}
}

func (n *EmailNotifier) NotifyPending(task.TaskType) {}

func (n *EmailNotifier) NotifyRunning(task.TaskType, string) {}

func (n *EmailNotifier) NotifyCompleted(taskType task.TaskType, _ func()) {
	subject := fmt.Sprintf("%s completed", typeLabel(taskType))
	n.send(subject, subject)
}

func (n *EmailNotifier) NotifyFailed(taskType task.TaskType, errMsg string, _ func(string)) {
	subject := fmt.Sprintf("%s failed", typeLabel(taskType))
	n.send(subject, fmt.Sprintf("%s: %s", subject, errMsg))
}

func (n *EmailNotifier) send(subject, body string) {
	from := mail.NewEmail(n.fromName, n.fromAddress)
	to := mail.NewEmail("", n.toAddress)
	email := mail.NewSingleEmail(from, subject, to, body, body)
	client := sendgrid.NewSendClient(n.apiKey)

	response, err := client.Send(email)
	if err != nil {
		log.Printf("failed to send notification email: %v", err)
		return
	}
	if response.StatusCode >= 400 {
		log.Printf("sendgrid error: status %d", response.StatusCode)
		return
	}

	log.Printf("Notification email sent to %s (status: %d)", n.toAddress, response.StatusCode)
}
