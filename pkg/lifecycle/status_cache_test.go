package lifecycle

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCacheSetAndGet(t *testing.T) {
	c := &StatusCache{Size: 10}

	_, ok := c.Status("nope")
	assert.False(t, ok)

	c.SetStatus("a", Status{StatusString: StatusQueued})
	status, ok := c.Status("a")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, status.StatusString)

	// updating in place keeps one entry per ID
	c.SetStatus("a", failedStatus(errors.New("boom")))
	status, ok = c.Status("a")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status.StatusString)
	assert.Equal(t, "boom", status.Err)
	assert.EqualError(t, status.Cause(), "boom")
}

func TestStatusCacheEvictsOldest(t *testing.T) {
	c := &StatusCache{Size: 2}
	c.SetStatus("a", Status{StatusString: StatusQueued})
	c.SetStatus("b", Status{StatusString: StatusQueued})
	c.SetStatus("c", Status{StatusString: StatusQueued})

	_, ok := c.Status("a")
	assert.False(t, ok)
	_, ok = c.Status("b")
	assert.True(t, ok)
	_, ok = c.Status("c")
	assert.True(t, ok)
}
