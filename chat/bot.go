package chat

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/resolver"
)

var (
	// Accepts "!spin @username", "!spin username", "!spin @Username".
	spinTargetRe = regexp.MustCompile(`(?i)!spin\s+@?(\w+)`)
	thresholdRe  = regexp.MustCompile(`(?i)!setthreshold\s+bits=(\d+)\s+subs=(\d+)`)
)

// Status is the payload of chat-connection-status events.
type Status struct {
	Connected bool   `json:"connected"`
	Channel   string `json:"channel"`
}

// Bot is the Twitch IRC listener feeding the tracker.
type Bot struct {
	cfg      config.Config
	settings *config.Manager
	ledger   *ledger.Service
	resolver *resolver.Resolver
	bus      *events.Bus
}

func NewBot(cfg config.Config, settings *config.Manager, svc *ledger.Service, res *resolver.Resolver, bus *events.Bus) *Bot {
	return &Bot{cfg: cfg, settings: settings, ledger: svc, resolver: res, bus: bus}
}

// Run connects to Twitch IRC and blocks until ctx is cancelled or the
// connection fails. With no channel configured it returns immediately;
// without bot credentials it falls back to an anonymous read-only connection.
func (b *Bot) Run(ctx context.Context) error {
	settings, err := b.settings.Snapshot()
	if err != nil {
		return err
	}
	channel := strings.TrimSpace(settings.ChannelName)
	if channel == "" {
		slog.Info("no channel configured; skipping chat listener")
		return nil
	}

	var client *twitch.Client
	if b.cfg.TwitchBotUsername != "" || b.cfg.TwitchOAuthToken != "" {
		// Half-configured credentials are a mistake, not a request to go
		// anonymous.
		if err := b.cfg.ValidateChatAuth(); err != nil {
			return err
		}
		client = twitch.NewClient(b.cfg.TwitchBotUsername, b.cfg.TwitchOAuthToken)
	} else {
		slog.Info("twitch creds not set; connecting anonymously")
		client = twitch.NewAnonymousClient()
	}

	client.OnConnect(func() {
		slog.Info("connected to twitch chat", slog.String("channel", channel))
		b.bus.Publish(events.ChatStatus, Status{Connected: true, Channel: channel})
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.handleMessage(ctx, msg)
	})
	client.OnUserNoticeMessage(func(msg twitch.UserNoticeMessage) {
		b.handleUserNotice(ctx, msg)
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(channel)
	err = client.Connect()
	b.bus.Publish(events.ChatStatus, Status{Connected: false, Channel: channel})
	select {
	case <-done:
		// Shutdown requested; Connect returning an error here is expected.
		return nil
	default:
	}
	return err
}

func (b *Bot) handleMessage(ctx context.Context, msg twitch.PrivateMessage) {
	username := msg.User.Name
	if username == "" {
		username = "anonymous"
	}
	text := strings.TrimSpace(msg.Message)

	if msg.Bits > 0 {
		if _, err := b.ledger.RecordDonation(ctx, username, msg.Bits, text, nil); err != nil {
			slog.Error("failed to record bit donation", slog.Any("err", err))
		}
		return
	}

	switch {
	case strings.HasPrefix(strings.ToLower(text), "!spin"):
		if _, err := b.ledger.RecordCommand(ctx, username, text); err != nil {
			slog.Error("failed to record spin command", slog.Any("err", err))
		}
		if !isPrivileged(msg.User) {
			return
		}
		target, ok := parseSpinTarget(text)
		if !ok {
			slog.Info("malformed spin command ignored", slog.String("username", username), slog.String("message", text))
			return
		}
		if _, err := b.resolver.Resolve(ctx, username, target); err != nil {
			if errors.Is(err, resolver.ErrNoQualifyingRecord) {
				slog.Info("spin command found nothing to mark", slog.String("target", target))
				return
			}
			slog.Error("failed to resolve spin command", slog.Any("err", err))
		}

	case strings.HasPrefix(strings.ToLower(text), "!setthreshold"):
		if !isPrivileged(msg.User) {
			return
		}
		bits, subs, ok := parseThresholds(text)
		if !ok {
			slog.Info("malformed threshold command ignored", slog.String("message", text))
			return
		}
		if err := b.settings.SetThresholds(bits, subs); err != nil {
			slog.Error("failed to set thresholds", slog.Any("err", err))
			return
		}
		slog.Info("thresholds updated from chat",
			slog.String("username", username), slog.Int("bits", bits), slog.Int("subs", subs))
	}
}

func (b *Bot) handleUserNotice(ctx context.Context, msg twitch.UserNoticeMessage) {
	// Community gift bundles arrive as one submysterygift notice; the
	// individual subgift notices it fans out into are ignored so a bundle is
	// not double counted.
	if msg.MsgID != "submysterygift" {
		return
	}
	count := 1
	if raw, ok := msg.MsgParams["msg-param-mass-gift-count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}
	username := msg.User.Name
	if username == "" {
		username = "anonymous"
	}
	if _, err := b.ledger.RecordGiftSub(ctx, username, count, nil, nil); err != nil {
		slog.Error("failed to record gift sub", slog.Any("err", err))
	}
}

// isPrivileged reports whether the sender may issue moderation commands:
// channel moderators and the broadcaster.
func isPrivileged(user twitch.User) bool {
	return user.Badges["moderator"] == 1 || user.Badges["broadcaster"] == 1
}

// parseSpinTarget extracts the target username from a "!spin" command,
// lowercased for case-insensitive matching downstream.
func parseSpinTarget(message string) (string, bool) {
	m := spinTargetRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// parseThresholds extracts the bit and sub thresholds from a "!setthreshold
// bits=<n> subs=<n>" command.
func parseThresholds(message string) (bits, subs int, ok bool) {
	m := thresholdRe.FindStringSubmatch(message)
	if m == nil {
		return 0, 0, false
	}
	bits, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	subs, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return bits, subs, true
}
