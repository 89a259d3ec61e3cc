package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/resolver"
	"github.com/onnwee/spin-tracker/store"
)

func TestParseSpinTarget(t *testing.T) {
	tests := []struct {
		message string
		want    string
		ok      bool
	}{
		{"!spin @alice", "alice", true},
		{"!spin alice", "alice", true},
		{"!spin @Alice", "alice", true},
		{"!SPIN @alice", "alice", true},
		{"!spin   bob_99", "bob_99", true},
		{"!spin", "", false},
		{"!spin   ", "", false},
		{"!spin @", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, ok := parseSpinTarget(tt.message)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseSpinTarget(%q) = %q, %v; want %q, %v", tt.message, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		message string
		bits    int
		subs    int
		ok      bool
	}{
		{"!setthreshold bits=500 subs=5", 500, 5, true},
		{"!SetThreshold bits=1000 subs=3", 1000, 3, true},
		{"!setthreshold bits=500", 0, 0, false},
		{"!setthreshold subs=5 bits=500", 0, 0, false},
		{"!setthreshold bits=abc subs=5", 0, 0, false},
		{"!setthreshold", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			bits, subs, ok := parseThresholds(tt.message)
			if ok != tt.ok || bits != tt.bits || subs != tt.subs {
				t.Errorf("parseThresholds(%q) = %d, %d, %v; want %d, %d, %v", tt.message, bits, subs, ok, tt.bits, tt.subs, tt.ok)
			}
		})
	}
}

func TestIsPrivileged(t *testing.T) {
	tests := []struct {
		name   string
		badges map[string]int
		want   bool
	}{
		{"moderator", map[string]int{"moderator": 1}, true},
		{"broadcaster", map[string]int{"broadcaster": 1}, true},
		{"subscriber", map[string]int{"subscriber": 12}, false},
		{"no badges", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPrivileged(twitch.User{Badges: tt.badges}); got != tt.want {
				t.Errorf("isPrivileged = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestBot(t *testing.T) (*Bot, *store.Store, *config.Manager) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	settings, err := config.NewManager(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	svc := ledger.NewService(st, settings, bus)
	res := resolver.New(st, bus)
	return NewBot(config.Config{}, settings, svc, res, bus), st, settings
}

func TestHandleMessageRecordsCheer(t *testing.T) {
	bot, st, _ := newTestBot(t)

	bot.handleMessage(context.Background(), twitch.PrivateMessage{
		User:    twitch.User{Name: "alice"},
		Message: "cheer1500 take my bits",
		Bits:    1500,
	})

	donations, _, err := st.Donations()
	if err != nil {
		t.Fatal(err)
	}
	if len(donations) != 1 {
		t.Fatalf("donations = %d, want 1", len(donations))
	}
	d := donations[0]
	if d.Username != "alice" || d.Bits != 1500 || !d.SpinTriggered {
		t.Errorf("donation = %+v", d)
	}
}

func TestHandleMessageSpinCommand(t *testing.T) {
	bot, st, _ := newTestBot(t)
	if err := st.AppendDonation(store.BitDonation{Timestamp: "2024-01-01T00:00:00.000Z", Username: "alice", Bits: 1500}); err != nil {
		t.Fatal(err)
	}

	// Non-mod usage is audited but never resolves.
	bot.handleMessage(context.Background(), twitch.PrivateMessage{
		User:    twitch.User{Name: "viewer"},
		Message: "!spin alice",
	})
	donations, _, err := st.Donations()
	if err != nil {
		t.Fatal(err)
	}
	if donations[0].SpinTriggered {
		t.Error("non-mod spin command marked a donation")
	}

	bot.handleMessage(context.Background(), twitch.PrivateMessage{
		User:    twitch.User{Name: "modperson", Badges: map[string]int{"moderator": 1}},
		Message: "!spin @Alice",
	})
	donations, _, err = st.Donations()
	if err != nil {
		t.Fatal(err)
	}
	if !donations[0].SpinTriggered {
		t.Error("mod spin command did not mark the donation")
	}

	commands, _, err := st.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 2 {
		t.Errorf("commands audited = %d, want 2", len(commands))
	}
}

func TestHandleMessageSetThreshold(t *testing.T) {
	bot, _, settings := newTestBot(t)

	bot.handleMessage(context.Background(), twitch.PrivateMessage{
		User:    twitch.User{Name: "viewer"},
		Message: "!setthreshold bits=500 subs=2",
	})
	s, err := settings.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if s.BitThreshold != config.DefaultBitThreshold {
		t.Error("non-mod changed thresholds")
	}

	bot.handleMessage(context.Background(), twitch.PrivateMessage{
		User:    twitch.User{Name: "streamer", Badges: map[string]int{"broadcaster": 1}},
		Message: "!setthreshold bits=500 subs=2",
	})
	s, err = settings.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if s.BitThreshold != 500 || s.GiftSubThreshold != 2 {
		t.Errorf("thresholds = %d/%d, want 500/2", s.BitThreshold, s.GiftSubThreshold)
	}
}

func TestHandleUserNotice(t *testing.T) {
	bot, st, _ := newTestBot(t)

	bot.handleUserNotice(context.Background(), twitch.UserNoticeMessage{
		User:      twitch.User{Name: "carol"},
		MsgID:     "submysterygift",
		MsgParams: map[string]string{"msg-param-mass-gift-count": "5"},
	})
	// The per-recipient fan-out notices must not double count.
	bot.handleUserNotice(context.Background(), twitch.UserNoticeMessage{
		User:  twitch.User{Name: "carol"},
		MsgID: "subgift",
	})

	giftSubs, _, err := st.GiftSubs()
	if err != nil {
		t.Fatal(err)
	}
	if len(giftSubs) != 1 {
		t.Fatalf("gift subs = %d, want 1", len(giftSubs))
	}
	if giftSubs[0].SubCount != 5 || !giftSubs[0].SpinTriggered {
		t.Errorf("gift sub = %+v", giftSubs[0])
	}
}

func TestRunRejectsIncompleteCredentials(t *testing.T) {
	bot, _, settings := newTestBot(t)
	if err := settings.Save(map[string]any{"channelName": "somechannel"}); err != nil {
		t.Fatal(err)
	}
	bot.cfg = config.Config{TwitchBotUsername: "spinbot"}

	err := bot.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for username without token")
	}
	if !strings.Contains(err.Error(), "TWITCH_OAUTH_TOKEN") {
		t.Errorf("err = %v, want mention of the missing variable", err)
	}
}
