// Package resolver turns a moderator's "!spin <user>" command into a record
// mutation: it finds the target's most recent creditable record and flips its
// spin trigger on.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/store"
	"github.com/onnwee/spin-tracker/telemetry"
)

// ErrNoQualifyingRecord reports that the target has no record that can be
// marked: either nothing on file, or everything already triggered.
var ErrNoQualifyingRecord = errors.New("no qualifying record for user")

// Resolution describes which record a Resolve call marked. Exactly one of
// Donation and GiftSub is set, matching Kind.
type Resolution struct {
	Kind     store.Kind         `json:"type"`
	Donation *store.BitDonation `json:"donation,omitempty"`
	GiftSub  *store.GiftSub     `json:"giftSub,omitempty"`
}

type Resolver struct {
	store *store.Store
	bus   *events.Bus
}

func New(st *store.Store, bus *events.Bus) *Resolver {
	return &Resolver{store: st, bus: bus}
}

// Resolve marks the target's latest bit donation for a spin, falling back to
// their latest gift sub bundle. A record already marked is left alone and the
// fallback proceeds; the donation path is always tried first even when a
// newer gift sub exists. Matching is case-insensitive. Publishes spin-alert
// on success.
func (r *Resolver) Resolve(ctx context.Context, issuer, target string) (Resolution, error) {
	ctx, span := telemetry.StartSpan(ctx, "resolver", "Resolve", attribute.String("target", target))
	defer span.End()

	log := telemetry.LoggerWithCorr(ctx).With(slog.String("issuer", issuer), slog.String("target", target))

	donation, found, err := r.store.FindLatestDonationByUser(target)
	if err != nil {
		telemetry.RecordError(span, err)
		return Resolution{}, err
	}
	if found && !donation.SpinTriggered {
		updated, err := r.store.UpdateDonation(donation.Timestamp, func(d *store.BitDonation) {
			d.SpinTriggered = true
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return Resolution{}, err
		}
		log.Info("marked bit donation for spin", slog.String("timestamp", updated.Timestamp))
		telemetry.IncSpinAlert()
		r.bus.Publish(events.SpinAlert, ledger.Alert{
			Kind: store.KindBits, Timestamp: updated.Timestamp, Username: updated.Username, Amount: updated.Bits,
		})
		return Resolution{Kind: store.KindBits, Donation: &updated}, nil
	}

	giftSub, found, err := r.store.FindLatestGiftSubByUser(target)
	if err != nil {
		telemetry.RecordError(span, err)
		return Resolution{}, err
	}
	if found && !giftSub.SpinTriggered {
		updated, err := r.store.UpdateGiftSub(giftSub.Timestamp, func(g *store.GiftSub) {
			g.SpinTriggered = true
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return Resolution{}, err
		}
		log.Info("marked gift sub for spin", slog.String("timestamp", updated.Timestamp))
		telemetry.IncSpinAlert()
		r.bus.Publish(events.SpinAlert, ledger.Alert{
			Kind: store.KindGiftSubs, Timestamp: updated.Timestamp, Username: updated.Username, Amount: updated.SubCount,
		})
		return Resolution{Kind: store.KindGiftSubs, GiftSub: &updated}, nil
	}

	log.Info("no qualifying record for spin command")
	return Resolution{}, ErrNoQualifyingRecord
}
