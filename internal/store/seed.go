package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

type seedFile struct {
	Products []Product  `json:"products"`
	Users    []seedUser `json:"users"`
	Orders   []Order    `json:"orders"`
}

type seedUser struct {
	User
	Password string `json:"password"`
}

// SeedFromFile loads a JSON fixture of products, users, and orders
// into an empty-ish store. Users come with plaintext passwords in the
// fixture; the caller supplies the hasher so this package stays out of
// the auth business.
func (s *SQLiteStore) SeedFromFile(ctx context.Context, filePath string, hashPassword func(string) (string, error)) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", filePath, err)
	}

	var seed seedFile
	if err := json.Unmarshal(contentBytes, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", filePath, err)
	}

	count := 0
	for i := range seed.Products {
		if err := s.CreateProduct(ctx, &seed.Products[i]); err != nil {
			log.Printf("Failed to seed product %q: %v. Skipping.", seed.Products[i].Name, err)
			continue
		}
		count++
	}

	for _, su := range seed.Users {
		hash, err := hashPassword(su.Password)
		if err != nil {
			log.Printf("Failed to hash password for seed user %q: %v. Skipping.", su.Email, err)
			continue
		}
		// Fixture users may carry fixed IDs so fixture orders can
		// reference them.
		if su.ID == "" {
			su.ID = uuid.NewString()
		}
		if su.Wishlist == nil {
			su.Wishlist = []string{}
		}
		wishlistJSON, _ := json.Marshal(su.Wishlist)
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO users (id, email, password_hash, display_name, is_admin, wishlist_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			su.ID, su.Email, hash, su.DisplayName, su.IsAdmin, string(wishlistJSON), time.Now())
		if err != nil {
			log.Printf("Failed to seed user %q: %v. Skipping.", su.Email, err)
			continue
		}
		count++
	}

	for i := range seed.Orders {
		if err := s.CreateOrder(ctx, &seed.Orders[i]); err != nil {
			log.Printf("Failed to seed order for user %q: %v. Skipping.", seed.Orders[i].UserID, err)
			continue
		}
		count++
	}

	log.Printf("Successfully seeded %d documents from %s.", count, filePath)
	return count, nil
}
