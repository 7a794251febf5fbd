package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	err := l.Record(context.Background(), "realm-1", "alice", EventDeny, "execute", "voices/secret",
		map[string]interface{}{"reason": "no grant"})
	require.NoError(t, err)

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))

	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "realm-1", event.RealmID)
	assert.Equal(t, EventDeny, event.Type)
	assert.Equal(t, "voices/secret", event.Resource)
	assert.Equal(t, "no grant", event.Metadata["reason"])
	assert.False(t, event.Timestamp.IsZero())
}

func TestNopDiscards(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), "", "", EventSystem, "", "", nil))
}
