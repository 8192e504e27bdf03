package conntrack

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownByDefault(t *testing.T) {
	tr := New()
	assert.Equal(t, Unknown, tr.Get("peer-A"))
}

func TestMonotonicUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		writes []ConnType
		want   ConnType
	}{
		{
			name:   "relay over unknown",
			writes: []ConnType{Relay},
			want:   Relay,
		},
		{
			name:   "direct over relay",
			writes: []ConnType{Relay, Direct},
			want:   Direct,
		},
		{
			name:   "relay never downgrades direct",
			writes: []ConnType{Direct, Relay},
			want:   Direct,
		},
		{
			name:   "unknown never downgrades relay",
			writes: []ConnType{Relay, Unknown},
			want:   Relay,
		},
		{
			name:   "same type is a no-op",
			writes: []ConnType{Direct, Direct},
			want:   Direct,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			for _, w := range tt.writes {
				tr.Update("peer-A", w)
			}
			assert.Equal(t, tt.want, tr.Get("peer-A"))
		})
	}
}

func TestRemove(t *testing.T) {
	tr := New()
	tr.Update("peer-A", Direct)
	tr.Remove("peer-A")

	assert.Equal(t, Unknown, tr.Get("peer-A"))
	assert.Empty(t, tr.Snapshot())
}

func TestSnapshotIsolation(t *testing.T) {
	tr := New()
	tr.Update("peer-A", Relay)

	snap := tr.Snapshot()
	snap["peer-A"] = Direct
	snap["peer-B"] = Direct

	assert.Equal(t, Relay, tr.Get("peer-A"))
	assert.Equal(t, Unknown, tr.Get("peer-B"))
}

func TestConcurrentAccess(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("peer-%d", n%4)
			for range 100 {
				tr.Update(id, Relay)
				tr.Update(id, Direct)
				tr.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	for i := range 4 {
		assert.Equal(t, Direct, tr.Get(fmt.Sprintf("peer-%d", i)))
	}
}

func TestConnTypeString(t *testing.T) {
	assert.Equal(t, "direct", Direct.String())
	assert.Equal(t, "relay", Relay.String())
	assert.Equal(t, "unknown", Unknown.String())
}
