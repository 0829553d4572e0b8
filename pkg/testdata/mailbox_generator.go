// Package testdata generates believable planner and vendor mail
// exchanges for seeding the fake mailbox provider in development and
// demos.
package testdata

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/plannerhq/vendorbook/pkg/mailbox"
)

// MailboxGeneratorConfig controls one generated batch of vendor
// threads. Every thread opens with an outbound inquiry; the stage
// chances decide how far the conversation gets after that, and each
// stage only happens when the previous one did.
type MailboxGeneratorConfig struct {
	OwnerEmail    string
	OwnerName     string
	Category      string
	VendorCount   int
	HistoryMonths int

	ReplyChance     float64
	QuoteChance     float64
	NegotiateChance float64
	BookChance      float64
	CompleteChance  float64
}

// Vendor is one synthetic counterpart: a business name and the
// address its mail comes from.
type Vendor struct {
	Name  string
	Email string
}

// vendorNameParts holds category-specific name components for
// realistic vendor business names.
var vendorNameParts = map[string]struct {
	Prefixes []string
	Suffixes []string
}{
	"florist": {
		Prefixes: []string{"Rosebud", "Wildflower", "Magnolia", "Ivy Lane", "Garden Gate", "Sweet Pea", "Juniper", "Thistle", "Petal", "Bloom"},
		Suffixes: []string{"Flowers", "Florals", "Floral Design", "Blooms", "Flower Co", "Botanicals"},
	},
	"caterer": {
		Prefixes: []string{"Harvest", "Golden Spoon", "Saffron", "Olive Branch", "Copper Pot", "Rosemary", "Heirloom", "Tableside", "Fig Tree", "Butter Lane"},
		Suffixes: []string{"Catering", "Kitchen", "Events Catering", "Fine Catering", "Provisions", "Table"},
	},
	"photographer": {
		Prefixes: []string{"Golden Hour", "Aperture", "Stillwater", "North Light", "Candid", "First Look", "Silver Frame", "Wren", "Lumen", "Ever After"},
		Suffixes: []string{"Photography", "Photo", "Studios", "Photography Co", "Imagery", "Visuals"},
	},
	"videographer": {
		Prefixes: []string{"Motion", "Keepsake", "Long Story", "Reel Love", "Super Eight", "Amber", "Drift", "Homestead", "Bright Field", "Slow Dance"},
		Suffixes: []string{"Films", "Cinema", "Video", "Wedding Films", "Productions", "Studio"},
	},
	"venue": {
		Prefixes: []string{"Willow Creek", "The Orchard", "Stonebridge", "Lakeside", "The Foundry", "Cedar Hall", "Hilltop", "The Conservatory", "Oak Grove", "Riverbend"},
		Suffixes: []string{"Estate", "Gardens", "Hall", "Manor", "Barn", "Event Center"},
	},
	"band": {
		Prefixes: []string{"Brass Note", "Midnight", "The Velvet", "Silver String", "Uptown", "The Jubilee", "Moonlight", "Second Line", "The Encore", "Blue Lantern"},
		Suffixes: []string{"Quartet", "Band", "Collective", "Orchestra", "Trio", "Ensemble"},
	},
	"rentals": {
		Prefixes: []string{"Heritage", "Festoon", "White Linen", "Marquee", "Gathered", "Velvet Chair", "Timber", "Statement", "Copper Lantern", "Grand"},
		Suffixes: []string{"Rentals", "Event Rentals", "Party Rentals", "Tent and Table", "Hire Co", "Event Supply"},
	},
	"bakery": {
		Prefixes: []string{"Sugar Maple", "Buttercream", "Flour Girl", "Wildflour", "Sweet Layer", "Vanilla Bean", "Crumb", "Honeycomb", "Blue Door", "Meringue"},
		Suffixes: []string{"Bakery", "Cakes", "Cake Studio", "Bakeshop", "Patisserie", "Confections"},
	},
}

// categoryServices maps each category to the things a planner would
// ask that vendor for. The phrases double as subject lines.
var categoryServices = map[string][]string{
	"florist":      {"centerpieces", "bridal bouquet", "ceremony florals", "reception arrangements"},
	"caterer":      {"catering", "dinner menu", "cocktail hour menu", "tasting menu"},
	"photographer": {"photography coverage", "engagement shoot", "full-day coverage"},
	"videographer": {"videography", "highlight film", "ceremony video"},
	"venue":        {"venue availability", "site visit", "reception space"},
	"band":         {"live music", "reception band", "ceremony musicians"},
	"rentals":      {"tent and tables", "event rentals", "chairs and linens"},
	"bakery":       {"wedding cake", "dessert table", "cake tasting"},
}

// eventKinds flavor the subjects and inquiry bodies.
var eventKinds = []string{
	"wedding", "rehearsal dinner", "welcome party", "engagement party",
	"anniversary party", "corporate retreat", "holiday party", "gala",
}

// newsletterSenders are the automated inbound-only senders used for
// noise threads. They never appear as candidates because discovery
// only harvests recipients of outbound mail.
var newsletterSenders = []mailbox.Address{
	{Name: "Aisle Weekly", Email: "newsletter@aisleweekly.com"},
	{Name: "Venue Digest", Email: "noreply@venuedigest.com"},
	{Name: "The Planner's Brief", Email: "updates@plannersbrief.com"},
}

// Categories returns the vendor categories the generator knows,
// sorted for stable iteration.
func Categories() []string {
	out := make([]string, 0, len(vendorNameParts))
	for category := range vendorNameParts {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// GenerateVendorName builds a category-flavored business name.
func GenerateVendorName(category string) string {
	parts, ok := vendorNameParts[category]
	if !ok {
		// Fallback for unknown categories
		return fmt.Sprintf("%s Events", gofakeit.Company())
	}

	prefix := parts.Prefixes[rand.Intn(len(parts.Prefixes))]
	suffix := parts.Suffixes[rand.Intn(len(parts.Suffixes))]

	return fmt.Sprintf("%s %s", prefix, suffix)
}

// GenerateVendor creates a vendor whose address is derived from the
// business name the way small vendors usually set theirs up.
func GenerateVendor(category string) Vendor {
	name := GenerateVendorName(category)

	domain := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	domain = strings.ReplaceAll(domain, "'", "")
	if len(domain) > 20 {
		domain = domain[:20]
	}

	return Vendor{
		Name:  name,
		Email: fmt.Sprintf("hello@%s.com", domain),
	}
}

// GenerateThread produces one planner and vendor exchange. The opener
// is always an outbound inquiry; the config's stage chances gate each
// later step. Messages that would land in the future are dropped, so
// threads near the edge of the window stay mid-conversation.
func GenerateThread(cfg MailboxGeneratorConfig, vendor Vendor, seq int) []mailbox.Message {
	now := time.Now().UTC()
	window := time.Duration(cfg.HistoryMonths) * 30 * 24 * time.Hour
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	at := now.Add(-window).Add(time.Duration(rand.Int63n(int64(window * 3 / 4))))

	threadID := fmt.Sprintf("seed-%s-%d", cfg.Category, seq)
	owner := mailbox.Address{Name: cfg.OwnerName, Email: cfg.OwnerEmail}
	vendorAddr := mailbox.Address{Name: vendor.Name, Email: vendor.Email}

	services := categoryServices[cfg.Category]
	if len(services) == 0 {
		services = []string{"availability"}
	}
	service := services[rand.Intn(len(services))]
	event := eventKinds[rand.Intn(len(eventKinds))]
	host := gofakeit.LastName()
	subject := fmt.Sprintf("%s for the %s %s", capitalizeFirst(service), host, event)
	eventDate := now.AddDate(0, 2+rand.Intn(8), rand.Intn(28)).Format("January 2")
	guests := gofakeit.Number(60, 250)
	total := gofakeit.Number(1200, 9000)

	var msgs []mailbox.Message
	push := func(dir mailbox.Direction, body string) bool {
		if at.After(now) {
			return false
		}
		msg := mailbox.Message{
			ID:        fmt.Sprintf("%s-m%d", threadID, len(msgs)+1),
			ThreadID:  threadID,
			Subject:   subject,
			Body:      body,
			Direction: dir,
			SentAt:    at,
		}
		if dir == mailbox.DirectionOutbound {
			msg.From = owner
			msg.To = []mailbox.Address{vendorAddr}
		} else {
			msg.From = vendorAddr
			msg.To = []mailbox.Address{owner}
		}
		if len(msgs) > 0 {
			msg.Subject = "Re: " + subject
		}
		msgs = append(msgs, msg)
		at = at.Add(time.Duration(2+rand.Intn(46)) * time.Hour)
		return true
	}

	push(mailbox.DirectionOutbound, fmt.Sprintf(
		"Hi %s, we're planning a %s for the %s family on %s and wanted to get in touch about %s. Do you have availability that weekend?",
		vendor.Name, event, host, eventDate, service))

	if rand.Float64() >= cfg.ReplyChance {
		return msgs
	}
	if !push(mailbox.DirectionInbound, fmt.Sprintf(
		"Hi %s, thanks for reaching out! We'd be happy to help with your event. %s is still open on our calendar.",
		cfg.OwnerName, eventDate)) {
		return msgs
	}

	if rand.Float64() >= cfg.QuoteChance {
		return msgs
	}
	if !push(mailbox.DirectionOutbound, fmt.Sprintf(
		"Great to hear. Could you send a quote for %s? We're expecting around %d guests.",
		service, guests)) {
		return msgs
	}
	if !push(mailbox.DirectionInbound, fmt.Sprintf(
		"Of course. Attached is the quote for %s. The estimate comes to $%d for %d guests.",
		service, total, guests)) {
		return msgs
	}

	if rand.Float64() < cfg.NegotiateChance {
		counter := total - gofakeit.Number(200, 800)
		if !push(mailbox.DirectionOutbound, fmt.Sprintf(
			"Thanks for the quote. Our budget is $%d, is there any flexibility on the price?", counter)) {
			return msgs
		}
		if !push(mailbox.DirectionInbound,
			"We can offer a discount for an off-peak date. Revised quote attached.") {
			return msgs
		}
	}

	if rand.Float64() >= cfg.BookChance {
		return msgs
	}
	if !push(mailbox.DirectionOutbound,
		"That works for us. We'd like to book the date, please send the contract and we'll get the deposit over this week.") {
		return msgs
	}
	if !push(mailbox.DirectionInbound, fmt.Sprintf(
		"Wonderful! Booking confirmed, we have you down for %s. Signed contract attached.", eventDate)) {
		return msgs
	}

	if rand.Float64() >= cfg.CompleteChance {
		return msgs
	}
	if !push(mailbox.DirectionInbound,
		"Final invoice attached, the remaining balance is due within 30 days. Thank you for choosing us!") {
		return msgs
	}
	push(mailbox.DirectionOutbound,
		"Final payment sent. Everything went smoothly, it was great working with you.")

	return msgs
}

// GenerateMailbox creates VendorCount vendors in the configured
// category and one thread for each.
func GenerateMailbox(cfg MailboxGeneratorConfig) []mailbox.Message {
	var msgs []mailbox.Message
	for i := 0; i < cfg.VendorCount; i++ {
		vendor := GenerateVendor(cfg.Category)
		msgs = append(msgs, GenerateThread(cfg, vendor, i+1)...)
	}
	return msgs
}

// GenerateNoise creates inbound-only newsletter threads spread over
// the window, one message each.
func GenerateNoise(ownerEmail, ownerName string, count, historyMonths int) []mailbox.Message {
	owner := mailbox.Address{Name: ownerName, Email: ownerEmail}
	window := time.Duration(historyMonths) * 30 * 24 * time.Hour
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	now := time.Now().UTC()

	msgs := make([]mailbox.Message, 0, count)
	for i := 0; i < count; i++ {
		sender := newsletterSenders[rand.Intn(len(newsletterSenders))]
		threadID := fmt.Sprintf("seed-news-%d", i+1)
		msgs = append(msgs, mailbox.Message{
			ID:        threadID + "-m1",
			ThreadID:  threadID,
			From:      sender,
			To:        []mailbox.Address{owner},
			Subject:   fmt.Sprintf("%s: %s", sender.Name, gofakeit.Sentence(5)),
			Body:      gofakeit.Paragraph(1, 3, 8, " "),
			Direction: mailbox.DirectionInbound,
			SentAt:    now.Add(-time.Duration(rand.Int63n(int64(window)))),
		})
	}
	return msgs
}

// SeedDemoMailbox fills the fake provider with a believable mailbox
// for one owner: a few vendors per category at mixed pipeline stages
// plus newsletter noise. Returns how many messages were seeded.
func SeedDemoMailbox(client *mailbox.FakeClient, ownerID int, ownerEmail, ownerName string) int {
	const historyMonths = 6

	var msgs []mailbox.Message
	for _, category := range Categories() {
		cfg := MailboxGeneratorConfig{
			OwnerEmail:      ownerEmail,
			OwnerName:       ownerName,
			Category:        category,
			VendorCount:     2 + rand.Intn(3),
			HistoryMonths:   historyMonths,
			ReplyChance:     0.8,
			QuoteChance:     0.7,
			NegotiateChance: 0.35,
			BookChance:      0.5,
			CompleteChance:  0.4,
		}
		msgs = append(msgs, GenerateMailbox(cfg)...)
	}
	msgs = append(msgs, GenerateNoise(ownerEmail, ownerName, 4, historyMonths)...)

	client.Seed(ownerID, msgs...)
	return len(msgs)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
