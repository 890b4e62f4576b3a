package battery_test

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"batterycode-go/battery"
	"batterycode-go/drivers/bq27541"
	"batterycode-go/drivers/bq27541/bq27541test"
	"batterycode-go/errcode"
)

// TestGuardedSectionsNeverInterleave checks that at most one operation is
// inside the bus at a time and that every read belongs to a whole operation.
func TestGuardedSectionsNeverInterleave(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := bq27541test.NewDefault()
	m := battery.New(bq27541.New(g, bq27541.DefaultConfig()))
	m.PrepareHardware()
	tag, err := m.QueryTag()
	require.NoError(t, err)

	var inside, maxInside int32
	g.OnRead(func(byte) {
		n := atomic.AddInt32(&inside, 1)
		for {
			old := atomic.LoadInt32(&maxInside)
			if n <= old || atomic.CompareAndSwapInt32(&maxInside, old, n) {
				break
			}
		}
		// stay inside long enough for an unguarded caller to collide
		runtime.Gosched()
		time.Sleep(50 * time.Microsecond)
		atomic.AddInt32(&inside, -1)
	})

	const workers, iters = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				if w%2 == 0 {
					_, err := m.QueryStatus(tag)
					assert.NoError(t, err)
				} else {
					_, err := m.Information(tag, battery.LevelStaticInformation, 0)
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&maxInside))

	// Each status is 3 reads, each static info is 3 reads, and they arrive
	// as unbroken triples.
	reads := g.Reads()
	require.Len(t, reads, workers*iters*3)
	status := []byte{bq27541.CmdNominalAvailCap, bq27541.CmdVoltage, bq27541.CmdRemainingCapacity}
	static := []byte{bq27541.CmdDesignCapacity, bq27541.CmdFullChargeCapacity, bq27541.CmdCycleCount}
	for i := 0; i < len(reads); i += 3 {
		tri := reads[i : i+3]
		if string(tri) != string(status) && string(tri) != string(static) {
			t.Fatalf("interleaved reads at %d: %v", i, tri)
		}
	}
}

// TestInvalidateIsLinearizable races tag advances against queries: every
// query either sees the tag it was built for or fails cleanly.
func TestInvalidateIsLinearizable(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := bq27541test.NewDefault()
	m := battery.New(bq27541.New(g, bq27541.DefaultConfig()))
	m.PrepareHardware()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Invalidate()
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tag, err := m.QueryTag()
				if err != nil {
					t.Errorf("query tag: %v", err)
					return
				}
				if _, err := m.QueryStatus(tag); err != nil && errcode.Of(err) != errcode.NoSuchDevice {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	tag, err := m.QueryTag()
	require.NoError(t, err)
	require.NotEqual(t, battery.TagInvalid, tag)
}
