package trash

import (
	"encoding/json"
	"time"
)

// Entity types recorded on trash items.
const (
	EntityMovie   = "movie"
	EntitySeries  = "series"
	EntityEpisode = "episode"
)

// Item is a soft-deleted catalog row. The payload is the entity's JSON
// form as it stood at deletion time and is all a restore needs.
type Item struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entityType"`
	OriginalID int64           `json:"originalId"`
	Payload    json.RawMessage `json:"payload"`
	DeletedAt  time.Time       `json:"deletedAt"`
}
