package attendance

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocker_ReleasesIdleKeys(t *testing.T) {
	l := newKeyLocker()
	k := RecordKey{SubjectID: "e1", Date: "2025-05-01"}

	unlock := l.Lock(k)
	assert.Equal(t, 1, l.size())
	unlock()
	assert.Equal(t, 0, l.size())
}

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	l := newKeyLocker()
	k := RecordKey{SubjectID: "e1", Date: "2025-05-01"}

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(k)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}
