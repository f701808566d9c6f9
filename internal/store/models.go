package store

import "time"

// Review lifecycle. A review is created as pending; the moderation
// pipeline is the only writer that moves it to approved or flagged.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusFlagged  = "flagged"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	StockCount  int       `json:"stockCount"`
	Description string    `json:"description"`
	IsTrending  bool      `json:"isTrending"`
	CreatedAt   time.Time `json:"createdAt"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	DisplayName  string    `json:"displayName"`
	IsAdmin      bool      `json:"isAdmin"`
	Wishlist     []string  `json:"wishlist"` // product IDs
	CreatedAt    time.Time `json:"createdAt"`
}

type ModerationData struct {
	SentimentScore float32   `json:"sentimentScore"`
	FlaggedReason  string    `json:"flaggedReason"`
	FlaggedAt      time.Time `json:"flaggedAt"`
}

type Review struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	Rating     int             `json:"rating"`
	Headline   string          `json:"headline"`
	Comment    string          `json:"comment"`
	Status     string          `json:"status"`
	Moderation *ModerationData `json:"moderationData,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ModerationSettings is a singleton document. The version column makes
// the read-union-write merge on bannedWords explicit and retryable.
type ModerationSettings struct {
	Version     int64    `json:"version"`
	BannedWords []string `json:"bannedWords"`
}
