package transport

import "encoding/json"

// App message keys exchanged over the room data channel. A client sends a
// latency ping and expects two pongs back: one straight from the message
// handler and one that traveled the whole pipeline.
const (
	TypeLatencyPing          = "latency-ping"
	TypeLatencyPongImmediate = "latency-pong-msg-handler"
	TypeLatencyPongPipeline  = "latency-pong-pipeline-delivery"
)

// pingBody is the payload under the latency-ping key. The timestamp is kept
// raw so whatever the client sent is echoed back unchanged.
type pingBody struct {
	TS json.RawMessage `json:"ts"`
}

// ParseLatencyPing reports whether data is a latency ping and returns its
// raw timestamp. Messages that are not valid JSON objects, or that carry a
// different key, are not pings.
func ParseLatencyPing(data []byte) (json.RawMessage, bool) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false
	}

	body, ok := msg[TypeLatencyPing]
	if !ok {
		return nil, false
	}

	var ping pingBody
	if err := json.Unmarshal(body, &ping); err != nil {
		// The ping key is present but the body is not an object; still a
		// ping, just with nothing to echo.
		return nil, true
	}
	return ping.TS, true
}

// EncodeLatencyPong builds a pong message under the given key, echoing the
// timestamp from the ping. A nil timestamp is encoded as JSON null.
func EncodeLatencyPong(kind string, ts json.RawMessage) ([]byte, error) {
	if len(ts) == 0 {
		ts = json.RawMessage("null")
	}
	return json.Marshal(map[string]pingBody{
		kind: {TS: ts},
	})
}
