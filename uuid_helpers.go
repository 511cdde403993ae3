package accounts

import "github.com/google/uuid"

// ParseUserID parses a string id, mapping failures to the not-found error so
// a garbled id is indistinguishable from a nonexistent account.
func ParseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUserNotFound
	}
	return id, nil
}

// actorUUID extracts the actor's account id when it carries one.
func actorUUID(actor ActorRef) *uuid.UUID {
	if actor.ID == "" {
		return nil
	}
	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil
	}
	return &id
}
