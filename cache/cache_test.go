package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testJob struct {
	CallbackURL string
	Status      string
}

func TestStoreAndRetrieve(t *testing.T) {
	c := New[testJob]()
	c.GetOrStore("42", func() testJob { return testJob{CallbackURL: "http://some-callback-url.com"} })

	job, ok := c.Lookup("42")
	require.True(t, ok)
	require.Equal(t, "http://some-callback-url.com", job.CallbackURL)

	_, ok = c.Lookup("43")
	require.False(t, ok)
}

func TestStoreAndRemove(t *testing.T) {
	c := New[testJob]()
	c.GetOrStore("42", func() testJob { return testJob{CallbackURL: "http://some-callback-url.com"} })

	require.True(t, c.RemoveIf("42", func(testJob) bool { return true }))
	_, ok := c.Lookup("42")
	require.False(t, ok)

	job, existed := c.GetOrStore("42", func() testJob { return testJob{Status: "queued"} })
	require.False(t, existed)
	require.Equal(t, "queued", job.Status)
}

func TestGetOrStoreCreatesOnce(t *testing.T) {
	c := New[*testJob]()
	created := 0
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrStore("42", func() *testJob {
				mu.Lock()
				created++
				mu.Unlock()
				return &testJob{Status: "queued"}
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 1, created)

	job, existed := c.GetOrStore("42", func() *testJob { return &testJob{} })
	require.True(t, existed)
	require.Equal(t, "queued", job.Status)
}

func TestRemoveIf(t *testing.T) {
	c := New[testJob]()
	c.GetOrStore("42", func() testJob { return testJob{Status: "composing"} })
	require.False(t, c.RemoveIf("42", func(j testJob) bool { return j.Status == "composed" }))
	require.True(t, c.RemoveIf("42", func(j testJob) bool { return j.Status == "composing" }))
	require.False(t, c.RemoveIf("42", func(j testJob) bool { return true }))
}
