package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        display_name TEXT NOT NULL DEFAULT '',
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        wishlist_json TEXT NOT NULL DEFAULT '[]', -- JSON array of product IDs
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS products (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        category TEXT NOT NULL DEFAULT '',
        price REAL NOT NULL DEFAULT 0,
        stock_count INTEGER NOT NULL DEFAULT 0,
        description TEXT NOT NULL DEFAULT '',
        is_trending BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS orders (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        items_json TEXT NOT NULL DEFAULT '[]', -- JSON array of order items
        total REAL NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'placed',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS reviews (
        id TEXT PRIMARY KEY, -- UUID
        product_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        user_name TEXT NOT NULL DEFAULT '',
        rating INTEGER NOT NULL,
        headline TEXT NOT NULL DEFAULT '',
        comment TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'flagged')),
        sentiment_score REAL,
        flagged_reason TEXT,
        flagged_at DATETIME,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (product_id) REFERENCES products (id)
    );

    CREATE TABLE IF NOT EXISTS moderation_settings (
        id INTEGER PRIMARY KEY CHECK (id = 1), -- singleton row
        version INTEGER NOT NULL DEFAULT 0,
        banned_words_json TEXT NOT NULL DEFAULT '[]',
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash, displayName string, isAdmin bool) (*User, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		IsAdmin:      isAdmin,
		Wishlist:     []string{},
		CreatedAt:    time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, display_name, is_admin, wishlist_json, created_at) VALUES (?, ?, ?, ?, ?, '[]', ?)",
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.IsAdmin, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, display_name, is_admin, wishlist_json, created_at FROM users WHERE email = ?", email)
	return scanUser(row)
}

func (s *SQLiteStore) UserByID(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, display_name, is_admin, wishlist_json, created_at FROM users WHERE id = ?", userID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var wishlistJSON string
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.IsAdmin, &wishlistJSON, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if err := json.Unmarshal([]byte(wishlistJSON), &user.Wishlist); err != nil {
		log.Printf("Warning: failed to unmarshal wishlist for user %s: %v. Wishlist will be empty.", user.ID, err)
		user.Wishlist = []string{}
	}
	return &user, nil
}

// Product methods

func (s *SQLiteStore) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name, category, price, stock_count, description, is_trending, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Category, p.Price, p.StockCount, p.Description, p.IsTrending, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AllProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, price, stock_count, description, is_trending, created_at FROM products ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.StockCount, &p.Description, &p.IsTrending, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Order methods

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO orders (id, user_id, items_json, total, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		o.ID, o.UserID, string(itemsJSON), o.Total, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// RecentOrders returns the most recent n orders across all users,
// newest first.
func (s *SQLiteStore) RecentOrders(ctx context.Context, n int) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, items_json, total, status, created_at FROM orders ORDER BY created_at DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrdersByUser returns a single user's orders, oldest first.
func (s *SQLiteStore) OrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, items_json, total, status, created_at FROM orders WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		var o Order
		var itemsJSON string
		if err := rows.Scan(&o.ID, &o.UserID, &itemsJSON, &o.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
			log.Printf("Warning: failed to unmarshal items for order %s: %v. Items will be empty.", o.ID, err)
			o.Items = nil
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Review methods

func (s *SQLiteStore) CreateReview(ctx context.Context, r *Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Status = ReviewStatusPending
	r.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reviews (id, product_id, user_id, user_name, rating, headline, comment, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.ProductID, r.UserID, r.UserName, r.Rating, r.Headline, r.Comment, r.Status, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReviewByID(ctx context.Context, reviewID string) (*Review, error) {
	var r Review
	var sentiment sql.NullFloat64
	var reason sql.NullString
	var flaggedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT id, product_id, user_id, user_name, rating, headline, comment, status, sentiment_score, flagged_reason, flagged_at, created_at FROM reviews WHERE id = ?",
		reviewID).Scan(&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &r.Headline, &r.Comment, &r.Status, &sentiment, &reason, &flaggedAt, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query review: %w", err)
	}
	if reason.Valid {
		r.Moderation = &ModerationData{
			SentimentScore: float32(sentiment.Float64),
			FlaggedReason:  reason.String,
			FlaggedAt:      flaggedAt.Time,
		}
	}
	return &r, nil
}

// RecentReviews returns the most recent n reviews across all users,
// newest first.
func (s *SQLiteStore) RecentReviews(ctx context.Context, n int) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, product_id, user_id, user_name, rating, headline, comment, status, created_at FROM reviews ORDER BY created_at DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reviews: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (s *SQLiteStore) ReviewsByUser(ctx context.Context, userID string) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, product_id, user_id, user_name, rating, headline, comment, status, created_at FROM reviews WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user reviews: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func scanReviews(rows *sql.Rows) ([]Review, error) {
	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &r.Headline, &r.Comment, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ApproveReview moves a pending review to approved. Approving a review
// that already left pending is a no-op so the pipeline's fail-open
// fallback stays idempotent.
func (s *SQLiteStore) ApproveReview(ctx context.Context, reviewID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET status = ? WHERE id = ? AND status = ?",
		ReviewStatusApproved, reviewID, ReviewStatusPending)
	if err != nil {
		return fmt.Errorf("failed to approve review: %w", err)
	}
	return nil
}

// FlagReview moves a pending review to flagged and records the
// moderation verdict. Unlike ApproveReview it errors when the review
// is missing or already moderated, since flagging is only ever the
// first transition.
func (s *SQLiteStore) FlagReview(ctx context.Context, reviewID string, m ModerationData) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET status = ?, sentiment_score = ?, flagged_reason = ?, flagged_at = ? WHERE id = ? AND status = ?",
		ReviewStatusFlagged, m.SentimentScore, m.FlaggedReason, m.FlaggedAt, reviewID, ReviewStatusPending)
	if err != nil {
		return fmt.Errorf("failed to flag review: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("review %s not pending, flag not applied", reviewID)
	}
	return nil
}

// Moderation settings methods

// BannedWords returns the blocklist and whether the settings document
// exists at all. A missing document is distinct from an empty list:
// only the former makes the caller fall back to defaults.
func (s *SQLiteStore) BannedWords(ctx context.Context) ([]string, bool, error) {
	var wordsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT banned_words_json FROM moderation_settings WHERE id = 1").Scan(&wordsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query moderation settings: %w", err)
	}
	var words []string
	if err := json.Unmarshal([]byte(wordsJSON), &words); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal banned words: %w", err)
	}
	return words, true, nil
}

const maxMergeAttempts = 5

// AddBannedWords unions the given words into the blocklist. The merge
// is a versioned read-modify-write: the update only lands if the row
// version is unchanged, otherwise it re-reads and retries. Returns the
// number of words that were actually new.
func (s *SQLiteStore) AddBannedWords(ctx context.Context, words []string) (int, error) {
	if len(words) == 0 {
		return 0, nil
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		var version int64
		var wordsJSON string
		var existing []string
		found := true

		err := s.db.QueryRowContext(ctx,
			"SELECT version, banned_words_json FROM moderation_settings WHERE id = 1").Scan(&version, &wordsJSON)
		if err == sql.ErrNoRows {
			found = false
		} else if err != nil {
			return 0, fmt.Errorf("failed to read moderation settings: %w", err)
		} else if err := json.Unmarshal([]byte(wordsJSON), &existing); err != nil {
			return 0, fmt.Errorf("failed to unmarshal banned words: %w", err)
		}

		merged, added := unionWords(existing, words)
		if added == 0 {
			return 0, nil
		}
		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal banned words: %w", err)
		}

		var res sql.Result
		if found {
			res, err = s.db.ExecContext(ctx,
				"UPDATE moderation_settings SET version = version + 1, banned_words_json = ?, updated_at = ? WHERE id = 1 AND version = ?",
				string(mergedJSON), time.Now(), version)
		} else {
			res, err = s.db.ExecContext(ctx,
				"INSERT OR IGNORE INTO moderation_settings (id, version, banned_words_json, updated_at) VALUES (1, 1, ?, ?)",
				string(mergedJSON), time.Now())
		}
		if err != nil {
			return 0, fmt.Errorf("failed to write moderation settings: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected > 0 {
			return added, nil
		}
		// Version moved under us (or the row appeared); retry with fresh state.
	}
	return 0, fmt.Errorf("banned-words merge did not converge after %d attempts", maxMergeAttempts)
}

func unionWords(existing, incoming []string) ([]string, int) {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, w := range existing {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		merged = append(merged, w)
	}
	added := 0
	for _, w := range incoming {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		merged = append(merged, w)
		added++
	}
	return merged, added
}
