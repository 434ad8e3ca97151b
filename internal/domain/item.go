package domain

import "time"

// Item is a piece of content owned by the artist who created it.
type Item struct {
	ID          string
	Owner       string
	Title       string
	Description string
	IsPublic    bool
	CreatedAt   time.Time
}

// ItemView is the client-facing projection of an Item.
type ItemView struct {
	ID          string `json:"_id"`
	Owner       string `json:"owner"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

// ItemPatch carries the mutable item fields; nil means "leave unchanged".
type ItemPatch struct {
	Title       *string
	Description *string
	IsPublic    *bool
}
