package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert. Postgres and sqlite share
// the same schema so ids are generated in the application.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
