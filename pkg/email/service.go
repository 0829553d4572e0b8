package email

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	baseURL     string
	sendGridKey string
	useSendGrid bool
}

// NewService creates a new email service
// If sendGridAPIKey is provided, emails will be sent via SendGrid
// Otherwise, emails will be logged to console (development mode)
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		baseURL:     baseURL,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// SendRunCompleted notifies that a backfill finished and its candidates
// await review.
func (s *Service) SendRunCompleted(toEmail, toName string, run *domain.BackfillRun) error {
	reviewURL := fmt.Sprintf("%s/candidates", s.baseURL)

	subject := "Your mailbox scan is complete"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Mailbox scan complete</h2>
			<p>Hi %s,</p>
			<p>VendorBook finished scanning the last %d months of your mailbox.</p>
			<ul>
				<li><strong>%d</strong> messages scanned</li>
				<li><strong>%d</strong> vendor contacts spotted</li>
				<li><strong>%d</strong> new candidates waiting for review</li>
			</ul>
			<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Review Candidates</a></p>
			<p>Thanks,<br>The VendorBook Team</p>
		</body>
		</html>
	`, toName, run.TimeframeMonths, run.ScannedMessages, run.DiscoveredContacts, run.CreatedCandidates, reviewURL)

	plainText := fmt.Sprintf(`
Hi %s,

VendorBook finished scanning the last %d months of your mailbox.

- %d messages scanned
- %d vendor contacts spotted
- %d new candidates waiting for review

Review them here: %s

Thanks,
The VendorBook Team
	`, toName, run.TimeframeMonths, run.ScannedMessages, run.DiscoveredContacts, run.CreatedCandidates, reviewURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}

	// Development mode: log to console
	return s.logEmailToConsole(toEmail, toName, subject, reviewURL)
}

// DigestItem is one pending proposal line in the weekly digest.
type DigestItem struct {
	ProjectName  string
	SupplierName string
	FromStatus   string
	ToStatus     string
	Confidence   float64
	ExpiresAt    time.Time
}

// SendProposalDigest sends the weekly summary of unresolved status
// proposals. An empty item list sends nothing.
func (s *Service) SendProposalDigest(toEmail, toName string, items []DigestItem) error {
	if len(items) == 0 {
		return nil
	}

	proposalsURL := fmt.Sprintf("%s/proposals", s.baseURL)
	subject := fmt.Sprintf("%d vendor status update(s) waiting for you", len(items))

	var htmlRows strings.Builder
	var plainRows strings.Builder
	for _, item := range items {
		from := item.FromStatus
		if from == "" {
			from = "(none)"
		}
		htmlRows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%s → %s</td><td>%.0f%%</td><td>%s</td></tr>",
			item.ProjectName, item.SupplierName, from, item.ToStatus,
			item.Confidence*100, item.ExpiresAt.Format("Jan 2"),
		))
		plainRows.WriteString(fmt.Sprintf(
			"- %s / %s: %s -> %s (%.0f%% confident, expires %s)\n",
			item.ProjectName, item.SupplierName, from, item.ToStatus,
			item.Confidence*100, item.ExpiresAt.Format("Jan 2"),
		))
	}

	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Pending vendor status updates</h2>
			<p>Hi %s,</p>
			<p>These suggested status changes are still waiting on a decision. Unresolved proposals expire automatically.</p>
			<table border="1" cellpadding="6" cellspacing="0">
				<tr><th>Project</th><th>Vendor</th><th>Change</th><th>Confidence</th><th>Expires</th></tr>
				%s
			</table>
			<p><a href="%s" style="background-color: #2196F3; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Review Proposals</a></p>
			<p>Thanks,<br>The VendorBook Team</p>
		</body>
		</html>
	`, toName, htmlRows.String(), proposalsURL)

	plainText := fmt.Sprintf(`
Hi %s,

These suggested status changes are still waiting on a decision:

%s
Review them here: %s

Thanks,
The VendorBook Team
	`, toName, plainRows.String(), proposalsURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}

	// Development mode: log to console
	return s.logEmailToConsole(toEmail, toName, subject, proposalsURL)
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)

	if err != nil {
		log.Printf("❌ SendGrid error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("❌ SendGrid returned error status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent successfully to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

// logEmailToConsole logs email details to console (development mode)
func (s *Service) logEmailToConsole(toEmail, toName, subject, actionURL string) error {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   Action URL: %s", actionURL)
	log.Printf("   ---")
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	log.Printf("   Set SENDGRID_API_KEY environment variable to enable email sending")
	log.Printf("   ---")
	return nil
}
