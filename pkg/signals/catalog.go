// Package signals owns the pipeline status catalog: the built-in stage
// definitions with their signal phrase sets, and the per-owner
// enable/disable view on top of them.
package signals

import "github.com/plannerhq/vendorbook/pkg/domain"

// Thread-pattern tokens the detection engine understands. A pattern on
// a status definition marks phrases of that status as stronger evidence
// when they appear in the named conversational position.
const (
	// PatternFirstOutboundInquiry matches when the message is the first
	// outbound message of its thread.
	PatternFirstOutboundInquiry = "first-outbound-inquiry"
	// PatternReplyToOutboundInquiry matches when an inbound message
	// follows an outbound message that itself matched an inquiry-stage
	// signal.
	PatternReplyToOutboundInquiry = "reply-to-outbound-inquiry"
)

// systemCatalog is the immutable built-in pipeline. Per-owner state
// never mutates these entries; it only overlays IsEnabled.
var systemCatalog = []domain.StatusDefinition{
	{
		Slug:  "contacted",
		Name:  "Contacted",
		Order: 1,
		Color: "#94A3B8",
		OutboundSignals: []string{
			"just reaching out",
			"wanted to get in touch",
			"checking your availability",
			"are you available on",
			"do you have availability",
			"we're planning a",
		},
		InboundSignals: []string{
			"thanks for reaching out",
			"thank you for contacting",
			"got your message",
			"happy to help with your event",
		},
		ThreadPatterns: []string{PatternFirstOutboundInquiry},
		IsSystem:       true,
		IsEnabled:      true,
	},
	{
		Slug:  "quote-requested",
		Name:  "Quote Requested",
		Order: 2,
		Color: "#60A5FA",
		OutboundSignals: []string{
			"could you send a quote",
			"could you send over a quote",
			"please send pricing",
			"what are your rates",
			"requesting a quote",
			"price list",
			"how much would it cost",
			"put together a proposal",
			"what would you charge",
		},
		InboundSignals: []string{
			"received your quote request",
			"working on your quote",
			"will send the quote over",
		},
		ThreadPatterns: []string{PatternFirstOutboundInquiry},
		IsSystem:       true,
		IsEnabled:      true,
	},
	{
		Slug:  "quote-received",
		Name:  "Quote Received",
		Order: 3,
		Color: "#34D399",
		InboundSignals: []string{
			"attached is the quote",
			"please find the quote",
			"here is the quote",
			"here's the quote",
			"our pricing is attached",
			"quote attached",
			"proposal attached",
			"the estimate comes to",
			"total comes to",
		},
		OutboundSignals: []string{
			"thanks for the quote",
			"received your quote",
			"reviewing your quote",
		},
		ThreadPatterns: []string{PatternReplyToOutboundInquiry},
		IsSystem:       true,
		IsEnabled:      true,
	},
	{
		Slug:  "negotiating",
		Name:  "Negotiating",
		Order: 4,
		Color: "#FBBF24",
		OutboundSignals: []string{
			"is there any flexibility",
			"can you do it for",
			"would you consider",
			"our budget is",
			"match that price",
			"any discount",
		},
		InboundSignals: []string{
			"best we can do",
			"we can offer a discount",
			"revised quote",
			"updated pricing",
			"final offer",
		},
		IsSystem:  true,
		IsEnabled: true,
	},
	{
		Slug:  "booked",
		Name:  "Booked",
		Order: 5,
		Color: "#A78BFA",
		OutboundSignals: []string{
			"we'd like to book",
			"we would like to book",
			"please send the contract",
			"go ahead and book",
			"confirming the booking",
			"deposit sent",
		},
		InboundSignals: []string{
			"booking confirmed",
			"you're confirmed for",
			"signed contract attached",
			"deposit received",
			"we have you down for",
		},
		IsSystem:  true,
		IsEnabled: true,
	},
	{
		Slug:  "completed",
		Name:  "Completed",
		Order: 6,
		Color: "#2DD4BF",
		OutboundSignals: []string{
			"everything went smoothly",
			"final payment sent",
			"great working with you",
			"thank you for making the day",
		},
		InboundSignals: []string{
			"thank you for choosing",
			"final invoice",
			"remaining balance",
			"it was a pleasure working",
		},
		IsSystem:  true,
		IsEnabled: true,
	},
}

// Catalog returns a copy of the built-in definitions in pipeline order.
func Catalog() []domain.StatusDefinition {
	out := make([]domain.StatusDefinition, len(systemCatalog))
	copy(out, systemCatalog)
	return out
}

// Lookup returns the built-in definition for a slug.
func Lookup(slug string) (domain.StatusDefinition, bool) {
	for _, def := range systemCatalog {
		if def.Slug == slug {
			return def, true
		}
	}
	return domain.StatusDefinition{}, false
}

// IsKnownSlug reports whether the slug names a catalog status.
func IsKnownSlug(slug string) bool {
	_, ok := Lookup(slug)
	return ok
}
