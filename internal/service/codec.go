package service

import "encoding/json"

// jsonCodec serializes plain Go structs for the Connect protocol. It
// replaces connect's built-in "json" codec, which only handles protobuf
// messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
