package domain

import "time"

type GarmentType string

const (
	GarmentTop       GarmentType = "top"
	GarmentShirt     GarmentType = "shirt"
	GarmentTShirt    GarmentType = "t-shirt"
	GarmentSweater   GarmentType = "sweater"
	GarmentJacket    GarmentType = "jacket"
	GarmentSuit      GarmentType = "suit"
	GarmentPants     GarmentType = "pants"
	GarmentJeans     GarmentType = "jeans"
	GarmentShorts    GarmentType = "shorts"
	GarmentShoes     GarmentType = "shoes"
	GarmentAccessory GarmentType = "accessory"
	GarmentOuterwear GarmentType = "outerwear"
	GarmentOther     GarmentType = "other"
)

// GarmentTypes lists every known garment type in display order.
var GarmentTypes = []GarmentType{
	GarmentTop, GarmentShirt, GarmentTShirt, GarmentSweater, GarmentJacket, GarmentSuit,
	GarmentOuterwear, GarmentPants, GarmentJeans, GarmentShorts, GarmentShoes,
	GarmentAccessory, GarmentOther,
}

// Valid reports whether t is a known garment type.
func (t GarmentType) Valid() bool {
	for _, known := range GarmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type HistoryKind string

const (
	KindStyleCheck HistoryKind = "style_check"
	KindOutfit     HistoryKind = "outfit"
	KindChat       HistoryKind = "chat"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Measurements are body measurements in Unit (inches unless stated).
// A nil field means the user has not provided it.
type Measurements struct {
	Chest    *float64 `json:"chest,omitempty"`
	Waist    *float64 `json:"waist,omitempty"`
	Neck     *float64 `json:"neck,omitempty"`
	Sleeve   *float64 `json:"sleeve,omitempty"`
	Shoulder *float64 `json:"shoulder,omitempty"`
	Inseam   *float64 `json:"inseam,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

type UserProfile struct {
	FirstName         string        `json:"firstName"`
	LastName          string        `json:"lastName,omitempty"`
	Email             string        `json:"email,omitempty"`
	Gender            string        `json:"gender,omitempty"`
	Age               int           `json:"age,omitempty"`
	HeightInches      float64       `json:"heightInches,omitempty"`
	WeightPounds      float64       `json:"weightPounds,omitempty"`
	Measurements      *Measurements `json:"measurements,omitempty"`
	StylePreferences  []string      `json:"stylePreferences"`
	FavoriteOccasions []string      `json:"favoriteOccasions"`
	ShoeSize          string        `json:"shoeSize,omitempty"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

type ClosetItem struct {
	ID        string      `json:"id"`
	Type      GarmentType `json:"type"`
	Name      string      `json:"name"`
	Colors    []string    `json:"colors"`
	Material  string      `json:"material,omitempty"`
	Brand     string      `json:"brand,omitempty"`
	Pattern   string      `json:"pattern,omitempty"`
	Season    string      `json:"season,omitempty"`
	Notes     string      `json:"notes,omitempty"`
	ImageKey  string      `json:"imageKey,omitempty"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type StyleCheckResult struct {
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Suggestions []string `json:"suggestions"`
	Occasion    string   `json:"occasion,omitempty"`
}

type OutfitResult struct {
	Occasion    string       `json:"occasion"`
	Description string       `json:"description"`
	Items       []ClosetItem `json:"items"`
	Tips        []string     `json:"tips,omitempty"`
}

type ContentPart struct {
	Type        PartType `json:"type"`
	Text        string   `json:"text,omitempty"`
	ImageBase64 string   `json:"imageBase64,omitempty"`
	MediaType   string   `json:"mediaType,omitempty"`
}

type ChatMessage struct {
	ID            string        `json:"id"`
	Role          Role          `json:"role"`
	Content       []ContentPart `json:"content"`
	WardrobeItems []ClosetItem  `json:"wardrobeItems,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Text joins the text parts of the message.
func (m ChatMessage) Text() string {
	var out string
	for _, part := range m.Content {
		if part.Type != PartText || part.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}

type ChatSession struct {
	ID            string        `json:"id"`
	Messages      []ChatMessage `json:"messages"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	// Active is recomputed from the last activity on every read. The stored
	// value is ignored.
	Active bool `json:"active"`
}

type HistoryEntry struct {
	ID         string            `json:"id"`
	Kind       HistoryKind       `json:"kind"`
	CreatedAt  time.Time         `json:"createdAt"`
	StyleCheck *StyleCheckResult `json:"styleCheck,omitempty"`
	Outfit     *OutfitResult     `json:"outfit,omitempty"`
	Chat       *ChatSession      `json:"chat,omitempty"`
}

type PremiumStatus struct {
	IsPremium           bool       `json:"isPremium"`
	FreeChecksRemaining int        `json:"freeChecksRemaining"`
	ChatTrialRemaining  int        `json:"chatTrialRemaining"`
	ChatMessagesSent    int        `json:"chatMessagesSent"`
	ActivatedAt         *time.Time `json:"activatedAt,omitempty"`
}

type OnboardingState struct {
	CompletedSteps []string  `json:"completedSteps"`
	SkippedSteps   []string  `json:"skippedSteps"`
	Finished       bool      `json:"finished"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
