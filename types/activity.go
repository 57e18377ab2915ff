package types

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// ActivityEntry is one free-form entry of a room's activity log.
type ActivityEntry struct {
	Id        string `json:"id" hash:"ignore"`
	Nick      string `json:"username"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// CreateId sets the Id field to a hash over the entry contents.
func (e *ActivityEntry) CreateId() error {
	hash, err := hashstructure.Hash(e, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	e.Id = fmt.Sprintf("%016x", hash)
	return nil
}
