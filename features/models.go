package features

import "time"

// Collection names
const (
	CollectionUsers     = "users"
	CollectionLocations = "locations"
	CollectionEvents    = "events"
	CollectionPosts     = "posts"
	CollectionTags      = "tags"
)

type User struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"required,min=2,max=100"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Password  string    `json:"password,omitempty" validate:"required,min=8,max=72"`
	Role      string    `json:"role,omitempty" validate:"omitempty,oneof=admin organizer member"`
	Image     string    `json:"image,omitempty" validate:"max=2048"`
	Bio       string    `json:"bio,omitempty" validate:"max=500"`
	CreatedAt time.Time `json:"createdAt"`
}

type Location struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"required,min=2,max=120"`
	Address   string    `json:"address" validate:"required,max=200"`
	City      string    `json:"city" validate:"required,max=100"`
	Country   string    `json:"country,omitempty" validate:"max=100"`
	Lat       *float64  `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64  `json:"lng,omitempty" validate:"omitempty,longitude"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventLocation is the copy of a location embedded in every event held there
type EventLocation struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

func snapshotOf(l Location) *EventLocation {
	return &EventLocation{ID: l.ID, Name: l.Name, Address: l.Address, City: l.City, Country: l.Country}
}

type Event struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title" validate:"required,min=3,max=150"`
	Description string         `json:"description,omitempty" validate:"max=5000"`
	StartsAt    time.Time      `json:"startsAt" validate:"required"`
	EndsAt      *time.Time     `json:"endsAt,omitempty"`
	LocationID  string         `json:"locationId" validate:"required"`
	Location    *EventLocation `json:"location,omitempty"`
	Tags        []string       `json:"tags,omitempty" validate:"max=10,dive,min=1,max=40"`
	OrganizerID string         `json:"organizerId,omitempty"`
	Price       *float64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	Image       string         `json:"image,omitempty" validate:"max=2048"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type Post struct {
	ID        string              `json:"id,omitempty"`
	Title     string              `json:"title" validate:"required,min=3,max=200"`
	Content   string              `json:"content" validate:"required,max=20000"`
	AuthorID  string              `json:"authorId,omitempty"`
	Tags      []string            `json:"tags,omitempty" validate:"max=10,dive,min=1,max=40"`
	Image     string              `json:"image,omitempty" validate:"max=2048"`
	Published bool                `json:"published"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

type Tag struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name" validate:"required,min=1,max=40"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}
