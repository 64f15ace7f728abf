// Package scoring turns raw chat events into points and decides whether an
// event is eligible to score at all.
package scoring

import (
	"regexp"
	"time"
	"unicode"
)

var (
	urlPattern         = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	customEmojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)
)

// Rules weights the parts of a message.
type Rules struct {
	CharPoints  int64 // Per letter or digit, URLs excluded
	EmojiPoints int64 // Per custom or Unicode emoji
}

// Breakdown is the itemised result of scoring one message.
type Breakdown struct {
	Chars  int64
	Emojis int64
	Points int64
}

// Score computes the points a message is worth. URLs contribute nothing.
// Custom emoji markup such as <:name:123> counts as one emoji; its name and id
// also count as characters, which is how the scoring has always behaved.
func (r Rules) Score(content string) Breakdown {
	var b Breakdown

	stripped := urlPattern.ReplaceAllString(content, "")
	for _, c := range stripped {
		if unicode.IsLetter(c) || unicode.IsNumber(c) {
			b.Chars++
		}
	}

	b.Emojis = int64(len(customEmojiPattern.FindAllStringIndex(content, -1)))
	for _, c := range content {
		if isEmoji(c) {
			b.Emojis++
		}
	}

	b.Points = b.Chars*r.CharPoints + b.Emojis*r.EmojiPoints
	return b
}

// isEmoji reports whether c is a pictographic symbol. Variation selectors,
// joiners and skin-tone modifiers are not counted on their own.
func isEmoji(c rune) bool {
	switch {
	case c >= 0x1F1E6 && c <= 0x1F1FF: // regional indicators
		return true
	case c >= 0x1F3FB && c <= 0x1F3FF: // skin tone modifiers
		return false
	case c >= 0x1F300 && c <= 0x1FAFF:
		return true
	case c >= 0x2600 && c <= 0x27BF:
		return unicode.Is(unicode.So, c)
	}
	return false
}

// Gate decides whether an event may score, based on the entity's recent
// activity as returned by the activity tracker.
type Gate struct {
	// BurstLimit is the number of events allowed within the burst window.
	// Events beyond it score zero. 0 disables burst gating.
	BurstLimit int64

	// Cooldown is the minimum time since the entity's previous event. 0
	// disables it.
	Cooldown time.Duration
}

// Verdict explains a gating decision.
type Verdict string

const (
	Allowed      Verdict = "allowed"
	BurstLimited Verdict = "burst_limited"
	CoolingOff   Verdict = "cooldown"
)

// Check evaluates an event at time at. previous is the entity's last event
// time before this one (zero if none) and burstCount includes this event.
func (g Gate) Check(at, previous time.Time, burstCount int64) Verdict {
	if g.BurstLimit > 0 && burstCount > g.BurstLimit {
		return BurstLimited
	}
	if g.Cooldown > 0 && !previous.IsZero() && at.Sub(previous) < g.Cooldown {
		return CoolingOff
	}
	return Allowed
}
