package resend

import (
	"context"
	"fmt"
	"html"

	resend "github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/tholdem/uniqn-sync/services/unified"
)

const defaultFrom = "onboarding@resend.dev"

// Sender is implemented by the Emails service of the Resend client.
type Sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Alerter mails degraded cache reports.
type Alerter struct {
	sender Sender
	from   string
	to     []string
	logger *zap.Logger
}

// NewAlerter creates an alerter sending from `from` to the given
// recipients through the Resend API.
func NewAlerter(apiKey, from string, to []string, logger *zap.Logger) *Alerter {
	return newAlerter(resend.NewClient(apiKey).Emails, from, to, logger)
}

func newAlerter(sender Sender, from string, to []string, logger *zap.Logger) *Alerter {
	if from == "" {
		from = defaultFrom
	}
	return &Alerter{
		sender: sender,
		from:   from,
		to:     to,
		logger: logger,
	}
}

func (a *Alerter) Alert(ctx context.Context, report unified.Report) error {
	params := &resend.SendEmailRequest{
		From:    a.from,
		To:      a.to,
		Subject: subject(report),
		Html:    getEmailTemplate(report),
	}

	sent, err := a.sender.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send cache alert: %w", err)
	}
	a.logger.Info("cache alert sent",
		zap.String("emailId", sent.Id),
		zap.Strings("to", a.to))
	return nil
}

func subject(report unified.Report) string {
	return fmt.Sprintf("Cache degraded: %.1f%% hit rate, %.0fms average query",
		report.CacheHitRate, report.AvgQueryTimeMs)
}

func getEmailTemplate(report unified.Report) string {
	row := func(name, value string) string {
		return fmt.Sprintf("<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(name), html.EscapeString(value))
	}
	rows := row("Cache size", fmt.Sprint(report.CacheSize)) +
		row("Requests", fmt.Sprint(report.TotalRequests())) +
		row("Hit rate", fmt.Sprintf("%.1f%%", report.CacheHitRate)) +
		row("Average query time", fmt.Sprintf("%.1fms", report.AvgQueryTimeMs)) +
		row("Errors", fmt.Sprint(report.ErrorCount)) +
		row("Subscriptions", fmt.Sprint(report.SubscriptionCount)) +
		row("Optimization savings", fmt.Sprint(report.OptimizationSavings))

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <style>
        body {
            font-family: Arial, sans-serif;
            background-color: #f4f4f4;
            margin: 0;
            padding: 20px;
        }
        .container {
            background-color: #ffffff;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
        td {
            padding: 4px 12px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h2>Cache performance degraded</h2>
        <table>%s</table>
    </div>
</body>
</html>`, rows)
}
