package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicator_SecondCallWithinWindowIsDuplicate(t *testing.T) {
	d := NewDeduplicator()
	assert.False(t, d.SeenBefore("telegram", "msg-1"))
	assert.True(t, d.SeenBefore("telegram", "msg-1"))
}

func TestDeduplicator_DifferentPlatformsDoNotCollide(t *testing.T) {
	d := NewDeduplicator()
	assert.False(t, d.SeenBefore("telegram", "msg-1"))
	assert.False(t, d.SeenBefore("whatsapp", "msg-1"))
}

func TestDeduplicator_ExpiresAfterWindow(t *testing.T) {
	base := time.Now()
	d := NewDeduplicator()
	d.now = func() time.Time { return base }

	assert.False(t, d.SeenBefore("telegram", "msg-1"))
	d.now = func() time.Time { return base.Add(dedupWindow + time.Second) }
	assert.False(t, d.SeenBefore("telegram", "msg-1"))
}
