package scenarios

import "time"

// Scenario is an analysis scope owned by a principal. The same text analyzed
// under two scenarios is cached independently.
type Scenario struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
