package ledger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/store"
)

type fakeSettings struct {
	bits int
	subs int
}

func (f *fakeSettings) Snapshot() (config.Settings, error) {
	return config.Settings{ChannelName: "testchannel", BitThreshold: f.bits, GiftSubThreshold: f.subs}, nil
}

func newTestService(t *testing.T) (*Service, *store.Store, *fakeSettings, *events.Bus) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := &fakeSettings{bits: 1000, subs: 3}
	bus := events.NewBus()
	svc := NewService(st, cfg, bus)

	// Deterministic, strictly increasing timestamps.
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc, st, cfg, bus
}

func collect(bus *events.Bus, event string) *[]any {
	var got []any
	bus.Subscribe(event, func(payload any) { got = append(got, payload) })
	return &got
}

func TestRecordDonationAutoTrigger(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	recorded := collect(bus, events.NewBitDonation)
	alerts := collect(bus, events.SpinAlert)

	d, err := svc.RecordDonation(context.Background(), "Alice", 2500, "big spin", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !d.SpinTriggered {
		t.Error("2500 bits at threshold 1000 should trigger")
	}
	if len(*recorded) != 1 || len(*alerts) != 1 {
		t.Fatalf("events: recorded=%d alerts=%d, want 1/1", len(*recorded), len(*alerts))
	}
	alert := (*alerts)[0].(Alert)
	if alert.Kind != store.KindBits || alert.Username != "Alice" || alert.Amount != 2500 {
		t.Errorf("alert = %+v", alert)
	}

	if _, err := svc.RecordDonation(context.Background(), "Bob", 200, "", nil); err != nil {
		t.Fatal(err)
	}
	if len(*alerts) != 1 {
		t.Error("below-threshold donation published a spin alert")
	}
}

func TestRecordDonationExplicitTriggerOverride(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	no := false
	d, err := svc.RecordDonation(context.Background(), "Alice", 5000, "", &no)
	if err != nil {
		t.Fatal(err)
	}
	if d.SpinTriggered {
		t.Error("explicit false trigger was overridden")
	}

	yes := true
	d, err = svc.RecordDonation(context.Background(), "Bob", 10, "", &yes)
	if err != nil {
		t.Fatal(err)
	}
	if !d.SpinTriggered {
		t.Error("explicit true trigger was overridden")
	}
}

func TestRecordDonationRejectsNegative(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.RecordDonation(context.Background(), "Alice", -5, "", nil)
	if !store.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestRecordGiftSubAutoTrigger(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	alerts := collect(bus, events.SpinAlert)

	g, err := svc.RecordGiftSub(context.Background(), "Carol", 3, []string{"x", "y", "z"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !g.SpinTriggered {
		t.Error("3 subs at threshold 3 should trigger")
	}
	if len(*alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(*alerts))
	}

	g, err = svc.RecordGiftSub(context.Background(), "Dave", 2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.SpinTriggered || len(*alerts) != 1 {
		t.Error("2 subs at threshold 3 should not trigger")
	}
}

func TestCreditsReflectsStore(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RecordDonation(ctx, "Alice", 2500, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordDonation(ctx, "Bob", 500, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordGiftSub(ctx, "Carol", 6, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordGiftSub(ctx, "Dave", 2, nil, nil); err != nil {
		t.Fatal(err)
	}

	items, err := svc.Credits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d credit items, want 2", len(items))
	}
	// Newest first: Carol's gift subs came after Alice's donation.
	if items[0].Username != "Carol" || items[0].SpinCount != 2 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Username != "Alice" || items[1].SpinCount != 2 {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestCompleteOneClampsAtSpinCount(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	ctx := context.Background()
	changes := collect(bus, events.SpinStatusChanged)

	d, err := svc.RecordDonation(ctx, "Alice", 2500, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	id := SpinID{Kind: store.KindBits, Timestamp: d.Timestamp}

	for i := 1; i <= 3; i++ {
		items, err := svc.CompleteOne(ctx, id)
		if err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		want := min(i, 2)
		if items[0].CompletedCount != want {
			t.Errorf("after complete %d: CompletedCount = %d, want %d", i, items[0].CompletedCount, want)
		}
	}
	if len(*changes) != 3 {
		t.Errorf("status change events = %d, want 3", len(*changes))
	}
	change := (*changes)[0].(StatusChange)
	if change.Kind != store.KindBits || change.Timestamp != d.Timestamp {
		t.Errorf("status change = %+v", change)
	}
}

func TestCompleteOneUsesCurrentThreshold(t *testing.T) {
	svc, _, cfg, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.RecordDonation(ctx, "Alice", 3000, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	id := SpinID{Kind: store.KindBits, Timestamp: d.Timestamp}

	// 3000 bits earned 3 spins at threshold 1000. After raising the
	// threshold to 1500 only 2 remain, and completion clamps against that.
	cfg.bits = 1500
	for i := 0; i < 5; i++ {
		if _, err := svc.CompleteOne(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	items, err := svc.Credits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].CompletedCount != 2 {
		t.Errorf("CompletedCount = %d, want 2", items[0].CompletedCount)
	}
}

func TestResetOne(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.RecordGiftSub(ctx, "Carol", 9, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	id := SpinID{Kind: store.KindGiftSubs, Timestamp: g.Timestamp}

	if _, err := svc.CompleteOne(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteOne(ctx, id); err != nil {
		t.Fatal(err)
	}
	items, err := svc.ResetOne(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].CompletedCount != 0 {
		t.Errorf("CompletedCount = %d after reset, want 0", items[0].CompletedCount)
	}
}

func TestCompleteOneUnknownTimestamp(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.CompleteOne(context.Background(), SpinID{Kind: store.KindBits, Timestamp: "2030-01-01T00:00:00.000Z"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClearAllCompleted(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	ctx := context.Background()
	changes := collect(bus, events.SpinStatusChanged)

	d, err := svc.RecordDonation(ctx, "Alice", 2000, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	g, err := svc.RecordGiftSub(ctx, "Carol", 3, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteOne(ctx, SpinID{Kind: store.KindBits, Timestamp: d.Timestamp}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteOne(ctx, SpinID{Kind: store.KindGiftSubs, Timestamp: g.Timestamp}); err != nil {
		t.Fatal(err)
	}

	before := len(*changes)
	if err := svc.ClearAllCompleted(ctx); err != nil {
		t.Fatal(err)
	}
	items, err := svc.Credits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		if it.CompletedCount != 0 {
			t.Errorf("%s still has CompletedCount %d", it.ID, it.CompletedCount)
		}
	}
	// One broadcast change with no specific record.
	if len(*changes) != before+1 {
		t.Fatalf("status change events = %d, want %d", len(*changes), before+1)
	}
	last := (*changes)[len(*changes)-1].(StatusChange)
	if last.Kind != "" || last.Timestamp != "" {
		t.Errorf("broadcast change = %+v, want zero value", last)
	}
}

func TestRecordCommand(t *testing.T) {
	svc, st, _, bus := newTestService(t)
	cmds := collect(bus, events.NewSpinCommand)

	c, err := svc.RecordCommand(context.Background(), "modperson", "!spin alice")
	if err != nil {
		t.Fatal(err)
	}
	if c.Command != "!spin alice" {
		t.Errorf("command = %q", c.Command)
	}
	if len(*cmds) != 1 {
		t.Fatalf("events = %d, want 1", len(*cmds))
	}
	got, _, err := st.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Username != "modperson" {
		t.Errorf("stored commands = %+v", got)
	}
}

func TestWriteCreditsCSV(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.RecordDonation(ctx, "Alice", 2500, "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordGiftSub(ctx, "Carol", 6, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteOne(ctx, SpinID{Kind: store.KindBits, Timestamp: d.Timestamp}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := svc.WriteCreditsCSV(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Date,Username,Type,Amount,Spins Earned,Spins Completed,Spins Pending" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Carol") || !strings.Contains(lines[1], "6 subs") {
		t.Errorf("first row = %q, want Carol's gift subs", lines[1])
	}
	if !strings.Contains(lines[2], "Alice") || !strings.Contains(lines[2], "2500 bits") || !strings.HasSuffix(lines[2], "2,1,1") {
		t.Errorf("second row = %q", lines[2])
	}
}
