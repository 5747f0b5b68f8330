package wshub

import (
	"bytes"
	"encoding/json"
	"errors"
)

// recordSeparator terminates every hub protocol message.
const recordSeparator = 0x1e

// Hub protocol message types.
const (
	typeInvocation = 1
	typeStreamItem = 2
	typeCompletion = 3
	typePing       = 6
	typeClose      = 7
)

var handshakeRequest = append([]byte(`{"protocol":"json","version":1}`), recordSeparator)

var pingMessage = append([]byte(`{"type":6}`), recordSeparator)

// frame is one hub protocol message.
type frame struct {
	Type           int               `json:"type"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// closeError is a close message sent by the server.
type closeError struct {
	message        string
	allowReconnect bool
}

func (e *closeError) Error() string {
	if e.message == "" {
		return "hub closed the connection"
	}
	return "hub closed the connection: " + e.message
}

// splitRecords splits data on the record separator, dropping empty records.
func splitRecords(data []byte) [][]byte {
	var out [][]byte
	for _, rec := range bytes.Split(data, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(rec)) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// parseHandshake reads the handshake response from the first record of data
// and returns whatever records followed it.
func parseHandshake(data []byte) (rest []byte, err error) {
	i := bytes.IndexByte(data, recordSeparator)
	if i < 0 {
		return nil, errors.New("incomplete handshake response")
	}
	var resp handshakeResponse
	if err := json.Unmarshal(data[:i], &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New("handshake rejected: " + resp.Error)
	}
	return data[i+1:], nil
}
