package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

// SlackDefaultChannel addresses the configured ops alert channel.
const SlackDefaultChannel = "#alerts"

// Message is one rendered notification addressed to one recipient.
type Message struct {
	Channel enums.NotificationChannel
	To      string
	Name    string
	Subject *string
	Body    string
}

// Provider delivers messages over one channel.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked by Permanent.
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}

// WebhookProviderParams configures a generic JSON webhook provider.
type WebhookProviderParams struct {
	Channel enums.NotificationChannel
	URL     string
	Token   string
	From    string
	Client  *http.Client
}

// WebhookProvider posts messages to an HTTP relay that fronts an email, SMS or WhatsApp gateway.
type WebhookProvider struct {
	channel enums.NotificationChannel
	url     string
	token   string
	from    string
	client  *http.Client
}

// NewWebhookProvider validates params and returns a WebhookProvider.
func NewWebhookProvider(params WebhookProviderParams) (*WebhookProvider, error) {
	if strings.TrimSpace(params.URL) == "" {
		return nil, fmt.Errorf("%s webhook url required", params.Channel)
	}
	client := params.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookProvider{
		channel: params.Channel,
		url:     params.URL,
		token:   params.Token,
		from:    params.From,
		client:  client,
	}, nil
}

type webhookPayload struct {
	Channel enums.NotificationChannel `json:"channel"`
	To      string                    `json:"to"`
	Name    string                    `json:"name,omitempty"`
	From    string                    `json:"from,omitempty"`
	Subject string                    `json:"subject,omitempty"`
	Body    string                    `json:"body"`
}

func (p *WebhookProvider) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Channel: p.channel,
		To:      msg.To,
		Name:    msg.Name,
		From:    p.from,
		Body:    msg.Body,
	}
	if msg.Subject != nil {
		payload.Subject = *msg.Subject
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", p.channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("%s webhook returned %d: %s", p.channel, resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackProvider posts alerts to Slack. Admin recipients are addressed by member id, which opens a DM.
type SlackProvider struct {
	client       slackPoster
	alertChannel string
}

// NewSlackProvider returns a provider posting through client.
func NewSlackProvider(client slackPoster, alertChannel string) (*SlackProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("slack client required")
	}
	return &SlackProvider{client: client, alertChannel: strings.TrimSpace(alertChannel)}, nil
}

func (p *SlackProvider) Send(ctx context.Context, msg Message) error {
	channel := msg.To
	if channel == SlackDefaultChannel {
		channel = p.alertChannel
	}
	if channel == "" {
		return Permanent(errors.New("slack alert channel not configured"))
	}
	text := msg.Body
	if msg.Subject != nil {
		text = "*" + *msg.Subject + "*\n" + text
	}
	_, _, err := p.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err == nil {
		return nil
	}
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return fmt.Errorf("slack rate limited, retry after %s: %w", rateLimited.RetryAfter, err)
	}
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return Permanent(fmt.Errorf("slack rejected message: %w", err))
	}
	return fmt.Errorf("slack post: %w", err)
}

// DryRunProvider logs messages instead of sending them.
type DryRunProvider struct {
	logg *logger.Logger
}

func (p DryRunProvider) Send(ctx context.Context, msg Message) error {
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"channel":   msg.Channel,
		"recipient": msg.To,
		"body_len":  len(msg.Body),
	}), "dry-run notification")
	return nil
}

// NewProviders builds a provider per configured channel. Channels without configuration are left out,
// and their deliveries fail permanently.
func NewProviders(cfg config.NotifyConfig, dryRun bool, logg *logger.Logger) (map[enums.NotificationChannel]Provider, error) {
	providers := map[enums.NotificationChannel]Provider{}
	if dryRun {
		for _, channel := range []enums.NotificationChannel{enums.ChannelEmail, enums.ChannelSMS, enums.ChannelWhatsApp, enums.ChannelSlack} {
			providers[channel] = DryRunProvider{logg: logg}
		}
		return providers, nil
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	webhooks := map[enums.NotificationChannel]string{
		enums.ChannelEmail:    cfg.EmailWebhookURL,
		enums.ChannelSMS:      cfg.SMSWebhookURL,
		enums.ChannelWhatsApp: cfg.WhatsAppWebhookURL,
	}
	for channel, url := range webhooks {
		if strings.TrimSpace(url) == "" {
			continue
		}
		provider, err := NewWebhookProvider(WebhookProviderParams{
			Channel: channel,
			URL:     url,
			Token:   cfg.WebhookToken,
			From:    cfg.DefaultFrom,
			Client:  client,
		})
		if err != nil {
			return nil, err
		}
		providers[channel] = provider
	}
	if strings.TrimSpace(cfg.SlackBotToken) != "" {
		provider, err := NewSlackProvider(slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(client)), cfg.SlackAlertChannel)
		if err != nil {
			return nil, err
		}
		providers[enums.ChannelSlack] = provider
	}
	return providers, nil
}
