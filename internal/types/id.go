package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

type Point struct {
	Lat float64
	Lng float64
}
