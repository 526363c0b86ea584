package domain

import "time"

// Evaluation is the requester's post-resolution rating. A ticket accumulates
// one evaluation per closure cycle; reopen followed by re-finalize starts a
// new cycle that admits a new row.
type Evaluation struct {
	ID        string
	TicketID  string
	Rating    int
	Comment   *string
	CreatedAt time.Time
}
