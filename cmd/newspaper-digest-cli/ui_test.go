package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", FormatDuration(2*time.Minute))
	assert.Equal(t, "1.5h", FormatDuration(90*time.Minute))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "5.0 MB", FormatBytes(5*1024*1024))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "The Hi…", Truncate("The Hindu editorial", 7))
	assert.Equal(t, "भा…", Truncate("भारत", 3))
}

func TestResolveOwner(t *testing.T) {
	id := uuid.New()

	got, err := resolveOwner(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	t.Setenv("DIGEST_USER_ID", "")
	_, err = resolveOwner("")
	assert.Error(t, err)

	t.Setenv("DIGEST_USER_ID", id.String())
	got, err = resolveOwner("")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = resolveOwner("nope")
	assert.Error(t, err)
}

func TestUIJSONMode(t *testing.T) {
	var buf bytes.Buffer
	u := NewUI(&buf, true, true)

	u.Success("hidden")
	u.Table([]string{"A"}, [][]string{{"x"}})
	assert.Nil(t, u.NewPageBar(3, "pages"))
	assert.Nil(t, u.MultiBar("paper", 3))
	require.NoError(t, u.JSON(map[string]int{"pages": 3}))

	assert.JSONEq(t, `{"pages":3}`, buf.String())
}

func TestUITextMode(t *testing.T) {
	var buf bytes.Buffer
	u := NewUI(&buf, false, true)

	u.Success("split %d pages", 4)
	u.KeyValue("ID", "abc")
	u.Table([]string{"Page", "Title"}, [][]string{{"1", "Budget"}})
	require.NoError(t, u.JSON("ignored"))

	out := buf.String()
	assert.Contains(t, out, "✓ split 4 pages")
	assert.Contains(t, out, "  ID: abc")
	assert.Contains(t, out, "│ Budget │")
	assert.NotContains(t, out, "ignored")
}
