package domain

import "time"

// Comment is a free-text note on a ticket, ordered by creation time.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
