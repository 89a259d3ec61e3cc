package store

import "strings"

// BitDonation is one recorded cheer. Timestamp is the record identity within
// the donation store: an ISO-8601 instant, matched as an exact string after
// trimming. SpinTriggered and SpinCompletedCount are the only two fields
// mutated after creation.
type BitDonation struct {
	Timestamp          string `json:"timestamp"`
	Username           string `json:"username"`
	Bits               int    `json:"bits"`
	Message            string `json:"message"`
	SpinTriggered      bool   `json:"spinTriggered"`
	SpinCompletedCount int    `json:"spinCompletedCount"`
}

// GiftSub is one recorded gift sub bundle.
type GiftSub struct {
	Timestamp          string   `json:"timestamp"`
	Username           string   `json:"username"`
	SubCount           int      `json:"subCount"`
	Recipients         []string `json:"recipients"`
	SpinTriggered      bool     `json:"spinTriggered"`
	SpinCompletedCount int      `json:"spinCompletedCount"`
}

// SpinCommand is an append-only audit entry for a "!spin" chat command.
type SpinCommand struct {
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Command   string `json:"command"`
}

// DonationStats aggregates a full donation read for the dashboards.
type DonationStats struct {
	TotalDonations int    `json:"totalDonations"`
	TotalBits      int    `json:"totalBits"`
	TotalSpins     int    `json:"totalSpins"`
	TopDonator     string `json:"topDonator"`
	TopDonatorBits int    `json:"topDonatorBits"`
}

// GiftSubStats aggregates a full gift sub read.
type GiftSubStats struct {
	TotalGiftSubs int    `json:"totalGiftSubs"`
	TotalSpins    int    `json:"totalSpins"`
	TopGifter     string `json:"topGifter"`
	TopGifterSubs int    `json:"topGifterSubs"`
}

// CommandStats aggregates a full command read.
type CommandStats struct {
	TotalCommands int `json:"totalCommands"`
	UniqueUsers   int `json:"uniqueUsers"`
}

func donationStats(donations []BitDonation) DonationStats {
	st := DonationStats{TotalDonations: len(donations), TopDonator: "None"}
	byUser := map[string]int{}
	for _, d := range donations {
		st.TotalBits += d.Bits
		if d.SpinTriggered {
			st.TotalSpins++
		}
		byUser[d.Username] += d.Bits
	}
	for user, bits := range byUser {
		if bits > st.TopDonatorBits {
			st.TopDonatorBits = bits
			st.TopDonator = user
		}
	}
	return st
}

func giftSubStats(giftSubs []GiftSub) GiftSubStats {
	st := GiftSubStats{TopGifter: "None"}
	byUser := map[string]int{}
	for _, g := range giftSubs {
		st.TotalGiftSubs += g.SubCount
		if g.SpinTriggered {
			st.TotalSpins++
		}
		byUser[g.Username] += g.SubCount
	}
	for user, subs := range byUser {
		if subs > st.TopGifterSubs {
			st.TopGifterSubs = subs
			st.TopGifter = user
		}
	}
	return st
}

func commandStats(commands []SpinCommand) CommandStats {
	users := map[string]struct{}{}
	for _, c := range commands {
		users[strings.ToLower(c.Username)] = struct{}{}
	}
	return CommandStats{TotalCommands: len(commands), UniqueUsers: len(users)}
}
