package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/store"
	"github.com/onnwee/spin-tracker/telemetry"
)

// timestampLayout matches the ISO-8601 instant format used as record
// identity (millisecond precision, UTC).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ThresholdSource yields the settings in force right now. Every derived
// computation re-reads it so a chat-triggered threshold change is visible
// immediately.
type ThresholdSource interface {
	Snapshot() (config.Settings, error)
}

// Alert is the payload of a spin-alert event.
type Alert struct {
	Kind      store.Kind `json:"type"`
	Timestamp string     `json:"timestamp"`
	Username  string     `json:"username"`
	Amount    int        `json:"amount"`
}

// StatusChange is the payload of a spin-status-changed event. A zero Kind
// means every record may have changed (bulk clear).
type StatusChange struct {
	Kind      store.Kind `json:"type,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
}

// Service is the spin accounting facade: it records incentive events (the
// store itself never emits), derives credits, and performs the
// completion/reset transitions.
type Service struct {
	store *store.Store
	cfg   ThresholdSource
	bus   *events.Bus
	now   func() time.Time
}

func NewService(st *store.Store, cfg ThresholdSource, bus *events.Bus) *Service {
	return &Service{store: st, cfg: cfg, bus: bus, now: time.Now}
}

// RecordDonation appends one bit donation. When trigger is nil the spin flag
// is derived from the current bit threshold. Publishes new-bit-donation and,
// when triggered, spin-alert.
func (s *Service) RecordDonation(ctx context.Context, username string, bits int, message string, trigger *bool) (store.BitDonation, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "RecordDonation", attribute.Int("bits", bits))
	defer span.End()

	if bits < 0 {
		err := &store.ValidationError{Reason: fmt.Sprintf("negative bits value %d", bits)}
		telemetry.RecordError(span, err)
		return store.BitDonation{}, err
	}
	settings, err := s.cfg.Snapshot()
	if err != nil {
		telemetry.RecordError(span, err)
		return store.BitDonation{}, err
	}
	triggered := bits >= settings.BitThreshold
	if trigger != nil {
		triggered = *trigger
	}
	d := store.BitDonation{
		Timestamp:     s.now().UTC().Format(timestampLayout),
		Username:      username,
		Bits:          bits,
		Message:       message,
		SpinTriggered: triggered,
	}
	if err := s.store.AppendDonation(d); err != nil {
		telemetry.RecordError(span, err)
		return store.BitDonation{}, err
	}
	telemetry.IncDonationRecorded()
	telemetry.LoggerWithCorr(ctx).Info("recorded bit donation",
		slog.String("username", username), slog.Int("bits", bits), slog.Bool("spin_triggered", triggered))

	s.bus.Publish(events.NewBitDonation, d)
	if triggered {
		telemetry.IncSpinAlert()
		s.bus.Publish(events.SpinAlert, Alert{Kind: store.KindBits, Timestamp: d.Timestamp, Username: d.Username, Amount: d.Bits})
	}
	return d, nil
}

// RecordGiftSub appends one gift sub bundle under the same trigger rule as
// RecordDonation, against the gift sub threshold.
func (s *Service) RecordGiftSub(ctx context.Context, username string, subCount int, recipients []string, trigger *bool) (store.GiftSub, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "RecordGiftSub", attribute.Int("sub_count", subCount))
	defer span.End()

	if subCount < 0 {
		err := &store.ValidationError{Reason: fmt.Sprintf("negative sub count %d", subCount)}
		telemetry.RecordError(span, err)
		return store.GiftSub{}, err
	}
	settings, err := s.cfg.Snapshot()
	if err != nil {
		telemetry.RecordError(span, err)
		return store.GiftSub{}, err
	}
	triggered := subCount >= settings.GiftSubThreshold
	if trigger != nil {
		triggered = *trigger
	}
	g := store.GiftSub{
		Timestamp:     s.now().UTC().Format(timestampLayout),
		Username:      username,
		SubCount:      subCount,
		Recipients:    recipients,
		SpinTriggered: triggered,
	}
	if err := s.store.AppendGiftSub(g); err != nil {
		telemetry.RecordError(span, err)
		return store.GiftSub{}, err
	}
	telemetry.IncGiftSubRecorded()
	telemetry.LoggerWithCorr(ctx).Info("recorded gift sub",
		slog.String("username", username), slog.Int("sub_count", subCount), slog.Bool("spin_triggered", triggered))

	s.bus.Publish(events.NewGiftSub, g)
	if triggered {
		telemetry.IncSpinAlert()
		s.bus.Publish(events.SpinAlert, Alert{Kind: store.KindGiftSubs, Timestamp: g.Timestamp, Username: g.Username, Amount: g.SubCount})
	}
	return g, nil
}

// RecordCommand appends one spin command audit entry and publishes
// new-spin-command. Command records carry no derived state.
func (s *Service) RecordCommand(ctx context.Context, username, command string) (store.SpinCommand, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "RecordCommand")
	defer span.End()

	c := store.SpinCommand{
		Timestamp: s.now().UTC().Format(timestampLayout),
		Username:  username,
		Command:   command,
	}
	if err := s.store.AppendCommand(c); err != nil {
		telemetry.RecordError(span, err)
		return store.SpinCommand{}, err
	}
	telemetry.IncCommandRecorded()
	telemetry.LoggerWithCorr(ctx).Info("recorded spin command", slog.String("username", username))
	s.bus.Publish(events.NewSpinCommand, c)
	return c, nil
}

// Credits derives the current spin credit list from a fresh store read and
// fresh thresholds.
func (s *Service) Credits(ctx context.Context) ([]CreditItem, error) {
	_, span := telemetry.StartSpan(ctx, "ledger", "Credits")
	defer span.End()

	settings, err := s.cfg.Snapshot()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	donations, _, err := s.store.Donations()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	giftSubs, _, err := s.store.GiftSubs()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	items := ComputeCredits(donations, giftSubs, settings.BitThreshold, settings.GiftSubThreshold)

	pending := 0
	for _, it := range items {
		if p := it.Pending(); p > 0 {
			pending += p
		}
	}
	telemetry.SetPendingSpins(pending)
	return items, nil
}

// CompleteOne increments the completed count of the identified record by
// exactly one, clamped to the spin count implied by the record's own amount
// and the threshold in force at this moment — not the one at creation time.
// Completing an already-fulfilled item is absorbed by the clamp rather than
// erroring, so a moderator double-click is harmless. Returns the refreshed
// credit list.
func (s *Service) CompleteOne(ctx context.Context, id SpinID) ([]CreditItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "CompleteOne", attribute.String("spin_id", id.String()))
	defer span.End()

	settings, err := s.cfg.Snapshot()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	switch id.Kind {
	case store.KindBits:
		_, err = s.store.UpdateDonation(id.Timestamp, func(d *store.BitDonation) {
			d.SpinCompletedCount = min(d.SpinCompletedCount+1, d.Bits/settings.BitThreshold)
		})
	case store.KindGiftSubs:
		_, err = s.store.UpdateGiftSub(id.Timestamp, func(g *store.GiftSub) {
			g.SpinCompletedCount = min(g.SpinCompletedCount+1, g.SubCount/settings.GiftSubThreshold)
		})
	default:
		err = fmt.Errorf("spin id %q has no completable kind", id.String())
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.IncSpinCompleted()
	s.bus.Publish(events.SpinStatusChanged, StatusChange{Kind: id.Kind, Timestamp: id.Timestamp})
	return s.Credits(ctx)
}

// ResetOne sets the completed count of the identified record back to zero
// unconditionally and returns the refreshed credit list.
func (s *Service) ResetOne(ctx context.Context, id SpinID) ([]CreditItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "ResetOne", attribute.String("spin_id", id.String()))
	defer span.End()

	var err error
	switch id.Kind {
	case store.KindBits:
		_, err = s.store.UpdateDonation(id.Timestamp, func(d *store.BitDonation) { d.SpinCompletedCount = 0 })
	case store.KindGiftSubs:
		_, err = s.store.UpdateGiftSub(id.Timestamp, func(g *store.GiftSub) { g.SpinCompletedCount = 0 })
	default:
		err = fmt.Errorf("spin id %q has no resettable kind", id.String())
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.IncSpinReset()
	s.bus.Publish(events.SpinStatusChanged, StatusChange{Kind: id.Kind, Timestamp: id.Timestamp})
	return s.Credits(ctx)
}

// ClearAllCompleted resets every record with a positive completed count,
// across both kinds. One scan and one file rewrite per kind.
func (s *Service) ClearAllCompleted(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ledger", "ClearAllCompleted")
	defer span.End()

	total := 0
	for _, kind := range []store.Kind{store.KindBits, store.KindGiftSubs} {
		n, err := s.store.ClearCompleted(kind)
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		total += n
	}

	telemetry.AddSpinsReset(total)
	telemetry.LoggerWithCorr(ctx).Info("cleared all completed spins", slog.Int("records", total))
	s.bus.Publish(events.SpinStatusChanged, StatusChange{})
	return nil
}

// WriteCreditsCSV renders the current credit list as a presentation CSV
// (dates, spins earned/completed/pending) for spreadsheet use.
func (s *Service) WriteCreditsCSV(ctx context.Context, w io.Writer) error {
	items, err := s.Credits(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Username", "Type", "Amount", "Spins Earned", "Spins Completed", "Spins Pending"}); err != nil {
		return err
	}
	for _, it := range items {
		kindLabel, amountLabel := "Gift Subs", fmt.Sprintf("%d subs", it.Amount)
		if it.Kind == store.KindBits {
			kindLabel, amountLabel = "Bit Donation", fmt.Sprintf("%d bits", it.Amount)
		}
		if err := cw.Write([]string{
			displayDate(it.Timestamp),
			it.Username,
			kindLabel,
			amountLabel,
			strconv.Itoa(it.SpinCount),
			strconv.Itoa(it.CompletedCount),
			strconv.Itoa(it.Pending()),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func displayDate(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Format("2006-01-02 15:04:05")
}
