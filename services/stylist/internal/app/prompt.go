package app

import (
	"fmt"
	"strconv"
	"strings"

	"gauge/pkg/domain"
)

const stylistPersona = `You are GAUGE, a personal stylist. Give specific, practical advice about fit, color and occasion. Prefer pieces the client already owns before suggesting purchases. Keep answers short and friendly.`

const replyFormatInstructions = `## Reply format
Reply with a single JSON object and nothing else:
{"blocks":[{"type":"text","text":"..."},{"type":"item","itemId":"..."}]}
Use "text" blocks for your advice and one "item" block for every wardrobe piece you recommend, using the id from the wardrobe list. Never invent ids. Only reference items listed below.`

type measurementField struct {
	name  string
	label string
	value *float64
}

func measurementFields(m domain.Measurements) []measurementField {
	return []measurementField{
		{"chest", "Chest", m.Chest},
		{"waist", "Waist", m.Waist},
		{"neck", "Neck", m.Neck},
		{"sleeve", "Sleeve", m.Sleeve},
		{"shoulder", "Shoulder", m.Shoulder},
		{"inseam", "Inseam", m.Inseam},
	}
}

// MissingMeasurements lists the required measurements that are not set.
func MissingMeasurements(m domain.Measurements) []string {
	var missing []string
	for _, f := range measurementFields(m) {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// JacketSize returns the chest measurement followed by L (shoulder >= 18),
// S (shoulder <= 16) or R. ok is false when chest or shoulder is missing.
func JacketSize(m domain.Measurements) (string, bool) {
	if m.Chest == nil || m.Shoulder == nil {
		return "", false
	}
	length := "R"
	switch shoulder := *m.Shoulder; {
	case shoulder >= 18:
		length = "L"
	case shoulder <= 16:
		length = "S"
	}
	return formatMeasurement(*m.Chest) + length, true
}

// formatMeasurement renders the stored value exactly, without rounding.
func formatMeasurement(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildSystemPrompt assembles the stylist context from the profile and closet.
// profile may be nil.
func BuildSystemPrompt(profile *domain.UserProfile, closet []domain.ClosetItem) string {
	var b strings.Builder
	b.WriteString(stylistPersona)
	b.WriteString("\n\n")
	writeClientSection(&b, profile)
	b.WriteString("\n")
	var measurements *domain.Measurements
	if profile != nil {
		measurements = profile.Measurements
	}
	writeMeasurementSection(&b, measurements)
	b.WriteString("\n")
	writeWardrobeSection(&b, closet)
	b.WriteString("\n")
	b.WriteString(replyFormatInstructions)
	b.WriteString("\n")
	return b.String()
}

func writeClientSection(b *strings.Builder, profile *domain.UserProfile) {
	b.WriteString("## Client\n")
	if profile == nil {
		b.WriteString("The client has not filled in a profile yet.\n")
		return
	}
	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	fmt.Fprintf(b, "Name: %s\n", name)
	if profile.Gender != "" {
		fmt.Fprintf(b, "Gender: %s\n", profile.Gender)
	}
	if profile.Age > 0 {
		fmt.Fprintf(b, "Age: %d\n", profile.Age)
	}
	if profile.HeightInches > 0 {
		fmt.Fprintf(b, "Height: %s in\n", formatMeasurement(profile.HeightInches))
	}
	if profile.WeightPounds > 0 {
		fmt.Fprintf(b, "Weight: %s lb\n", formatMeasurement(profile.WeightPounds))
	}
	if profile.ShoeSize != "" {
		fmt.Fprintf(b, "Shoe size: %s\n", profile.ShoeSize)
	}
	if len(profile.StylePreferences) > 0 {
		fmt.Fprintf(b, "Style preferences: %s\n", strings.Join(profile.StylePreferences, ", "))
	}
	if len(profile.FavoriteOccasions) > 0 {
		fmt.Fprintf(b, "Favorite occasions: %s\n", strings.Join(profile.FavoriteOccasions, ", "))
	}
}

func writeMeasurementSection(b *strings.Builder, m *domain.Measurements) {
	b.WriteString("## Measurements\n")
	if m == nil {
		b.WriteString("No body measurements are on file. Do not guess sizes; if fit matters, ask the client to add their measurements in their profile.\n")
		return
	}
	if missing := MissingMeasurements(*m); len(missing) > 0 {
		b.WriteString("WARNING: the client's measurements are incomplete (missing: ")
		b.WriteString(strings.Join(missing, ", "))
		b.WriteString(").\nYou do not have their full measurements. Do not state exact sizes. Give general fit guidance and suggest completing the measurements in their profile.\n")
		return
	}
	b.WriteString("Exact body measurements in inches. Use these values exactly as written. Do not round, estimate or adjust them.\n")
	for _, f := range measurementFields(*m) {
		fmt.Fprintf(b, "- %s: %s\n", f.label, formatMeasurement(*f.value))
	}
	size, _ := JacketSize(*m)
	fmt.Fprintf(b, "Jacket size: %s. When recommending jackets or suits, use exactly this size.\n", size)
}

func writeWardrobeSection(b *strings.Builder, closet []domain.ClosetItem) {
	b.WriteString("## Wardrobe\n")
	if len(closet) == 0 {
		b.WriteString("The client has not added any wardrobe items yet.\n")
		return
	}
	for _, group := range GroupByType(closet) {
		fmt.Fprintf(b, "### %s\n", group.Type)
		for _, item := range group.Items {
			b.WriteString("- ")
			b.WriteString(describeItem(item))
			fmt.Fprintf(b, " [ITEM_ID:%s]\n", item.ID)
		}
	}
}

func describeItem(item domain.ClosetItem) string {
	name := item.Name
	if name == "" {
		name = string(item.Type)
	}
	var details []string
	if len(item.Colors) > 0 {
		details = append(details, strings.Join(item.Colors, "/"))
	}
	for _, d := range []string{item.Material, item.Pattern, item.Brand, item.Season} {
		if d != "" {
			details = append(details, d)
		}
	}
	if len(details) == 0 {
		return name
	}
	return name + " (" + strings.Join(details, ", ") + ")"
}
