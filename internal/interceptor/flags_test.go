package interceptor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlags_WatchAndCancel(t *testing.T) {
	f := NewFlags()

	var got []FlagState
	cancel := f.Watch(func(s FlagState) { got = append(got, s) })

	f.SetLoading(true)
	f.SetLoading(true) // no change, no notification
	f.SetLoading(false)
	cancel()
	f.SetLoading(true)

	assert.Equal(t, []FlagState{{Loading: true}, {Loading: false}}, got)
}

func TestFlags_RaiseErrorClearsAfterDuration(t *testing.T) {
	f := NewFlags()

	f.RaiseError(20 * time.Millisecond)
	assert.True(t, f.State().GlobalError)

	assert.Eventually(t, func() bool { return !f.State().GlobalError }, time.Second, 5*time.Millisecond)
}

func TestFlags_LastWriterClearsLoading(t *testing.T) {
	f := NewFlags()

	f.SetLoading(true)  // request A
	f.SetLoading(true)  // request B
	f.SetLoading(false) // A completes

	assert.False(t, f.State().Loading)
}
