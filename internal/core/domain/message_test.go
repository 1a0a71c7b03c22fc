package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		raw     string
		want    MessageType
		wantErr bool
	}{
		{raw: `{"type":"PING_DB"}`, want: MessagePingDB},
		{raw: `{"type":"DB_READY"}`, want: MessageDBReady},
		{raw: `{"type":"DB_ERROR","error":"x"}`, want: MessageDBError},
		{raw: `{"type":"HELLO"}`, wantErr: true},
		{raw: `{}`, wantErr: true},
		{raw: `null`, wantErr: true},
		{raw: `[1,2]`, wantErr: true},
		{raw: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, err := DecodeMessage([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrProtocol) {
					t.Fatalf("error = %v, want ErrProtocol", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Type != tt.want {
				t.Errorf("Type = %q, want %q", m.Type, tt.want)
			}
		})
	}
}

func TestMessageEncoding(t *testing.T) {
	data, _ := json.Marshal(ReadyMessage())
	if string(data) != `{"type":"DB_READY"}` {
		t.Errorf("ReadyMessage = %s", data)
	}

	data, _ = json.Marshal(ErrorMessage(NewFetchStatusError(404, "Not Found")))
	if string(data) != `{"type":"DB_ERROR","error":"DB fetch failed: 404 Not Found"}` {
		t.Errorf("ErrorMessage = %s", data)
	}
}
