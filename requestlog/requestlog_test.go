package requestlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndSnapshot(t *testing.T) {
	log := New(3)

	log.Append(NewRecord("GET", "http://a", false))
	log.Append(NewRecord("GET", "http://b", true))

	snapshot := log.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "http://a", snapshot[0].URI)
	assert.Equal(t, "http://b", snapshot[1].URI)
	assert.True(t, snapshot[1].Blocked)
}

func TestAppend_DropsOldestAtCapacity(t *testing.T) {
	log := New(2)

	log.Append(NewRecord("GET", "http://a", false))
	log.Append(NewRecord("GET", "http://b", false))
	log.Append(NewRecord("GET", "http://c", false))

	snapshot := log.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "http://b", snapshot[0].URI)
	assert.Equal(t, "http://c", snapshot[1].URI)
}

func TestNew_NonPositiveCapacityFallsBackToDefault(t *testing.T) {
	log := New(0)
	assert.Equal(t, DefaultCapacity, log.capacity)
}

func TestLen(t *testing.T) {
	log := New(10)
	assert.Equal(t, 0, log.Len())
	log.Append(NewRecord("GET", "http://a", false))
	assert.Equal(t, 1, log.Len())
}

func TestNewRecord_AssignsUniqueIDs(t *testing.T) {
	first := NewRecord("GET", "http://a", false)
	second := NewRecord("GET", "http://a", false)
	assert.NotEqual(t, first.ID, second.ID)
}
