package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/models"
)

// Consecutive SMTP failures that open the breaker, and how long it stays
// open before a trial send.
const (
	breakerFailures = 5
	breakerTimeout  = time.Minute
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg     *config.Config
	logger  *logrus.Logger
	breaker *gobreaker.CircuitBreaker
	send    func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.sendSMTP
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker [%s] %s -> %s", name, from, to)
		},
	})
	return s
}

// SendInstallmentReminder emails the parent about an upcoming or overdue
// installment.
func (s *Sender) SendInstallmentReminder(rem models.Reminder) error {
	e := ReminderEmail(s.cfg.SenderEmail, rem)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.send(e)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Warnf("SMTP unavailable, email to %s not attempted", rem.Email)
		} else {
			s.logger.Errorf("Failed to send email to %s: %v", rem.Email, err)
		}
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", rem.Email, e.Subject)
	return nil
}

// ReminderEmail builds the reminder message for one installment.
func ReminderEmail(from string, rem models.Reminder) *email.Email {
	p := rem.Installment
	e := email.NewEmail()
	e.From = from
	e.To = []string{rem.Email}
	if rem.Overdue {
		e.Subject = fmt.Sprintf("Overdue Installment %d for %s", p.InstallmentNo, rem.ChildName)
	} else {
		e.Subject = fmt.Sprintf("Upcoming Installment %d for %s", p.InstallmentNo, rem.ChildName)
	}

	amount := FormatAmount(p.Amount)
	due := p.DueDate.Format("2006-01-02")

	body := "Dear Parent,\n\n"
	if rem.Overdue {
		body += fmt.Sprintf(
			"Installment %d of %s for %s was due on %s and is now overdue.\n"+
				"Please settle it as soon as possible.\n",
			p.InstallmentNo, amount, rem.ChildName, due,
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that installment %d of %s for %s is due on %s.\n",
			p.InstallmentNo, amount, rem.ChildName, due,
		)
	}
	if p.PaymentMethod == models.MethodCheque {
		body += "The post-dated cheque on file will be deposited on the due date.\n"
	}
	if p.InvoiceRef != "" {
		body += fmt.Sprintf("Invoice reference: %s\n", p.InvoiceRef)
	}
	body += "\nBest regards,\nAccounts Office"
	e.Text = []byte(body)
	return e
}

// FormatAmount renders a money amount with thousands separators and two
// decimals. The digits come from the decimal itself, never from a float.
func FormatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	if sign == "-" && strings.Trim(whole+frac, "0") == "" {
		sign = ""
	}
	return sign + groupThousands(whole) + "." + frac
}

// groupThousands inserts separators into a string of digits. Anything that
// fits an int64 goes through the English number printer.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return message.NewPrinter(language.English).Sprintf("%d", n)
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}
