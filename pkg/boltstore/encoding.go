package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

func init() {
	gob.Register(gamedb.Object{})
	gob.Register(gamedb.PropValue{})
}

// encodeObject serializes an Object, property tree included, using gob.
func encodeObject(obj *gamedb.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeObject deserializes bytes back into an Object.
func decodeObject(data []byte) (*gamedb.Object, error) {
	var obj gamedb.Object
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return nil, err
	}
	if obj.Props == nil {
		obj.Props = make(map[string]gamedb.PropValue)
	}
	return &obj, nil
}
