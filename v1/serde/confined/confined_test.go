package confined

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// unsafeCodec fails the test run if two calls ever overlap on it.
type unsafeCodec struct {
	id     int
	busy   atomic.Bool
	onCall func()
	closed atomic.Bool
}

func (u *unsafeCodec) Serialize(topic string, data any) ([]byte, error) {
	if !u.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("instance %d used concurrently", u.id)
	}
	defer u.busy.Store(false)
	if u.onCall != nil {
		u.onCall()
	}
	if data == "bad" {
		return nil, fmt.Errorf("%w: bad record", serde.ErrSerialization)
	}
	return []byte(fmt.Sprintf("%d:%v", u.id, data)), nil
}

func (u *unsafeCodec) Deserialize(topic string, data []byte) (any, error) {
	if !u.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("instance %d used concurrently", u.id)
	}
	defer u.busy.Store(false)
	if u.onCall != nil {
		u.onCall()
	}
	return string(data), nil
}

func (u *unsafeCodec) Close() error {
	u.closed.Store(true)
	return nil
}

type countingSupplier struct {
	mu        sync.Mutex
	instances []*unsafeCodec
	onCall    func()
}

func (c *countingSupplier) serializer() (serde.Serializer, error) {
	return c.next(), nil
}

func (c *countingSupplier) deserializer() (serde.Deserializer, error) {
	return c.next(), nil
}

func (c *countingSupplier) next() *unsafeCodec {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst := &unsafeCodec{id: len(c.instances), onCall: c.onCall}
	c.instances = append(c.instances, inst)
	return inst
}

func (c *countingSupplier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

func TestConcurrentCallersGetDistinctInstances(t *testing.T) {
	const callers = 8

	var inside sync.WaitGroup
	inside.Add(callers)
	release := make(chan struct{})
	supplier := &countingSupplier{onCall: func() {
		inside.Done()
		<-release
	}}

	ser := NewSerializer(supplier.serializer, WithMaxIdle(callers))

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := ser.Serialize("t", i)
			return err
		})
	}

	inside.Wait()
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, callers, supplier.count())
	assert.Equal(t, callers, ser.Created())
}

func TestSteadyWorkersKeepTheirInstances(t *testing.T) {
	const (
		workers = 8
		rounds  = 50
	)

	var (
		warm   atomic.Bool
		inside sync.WaitGroup
	)
	inside.Add(workers)
	release := make(chan struct{})
	supplier := &countingSupplier{onCall: func() {
		if warm.Load() {
			time.Sleep(time.Millisecond)
			return
		}
		inside.Done()
		<-release
	}}
	ser := NewSerializer(supplier.serializer)

	// all workers in flight at once so the peak is reached up front
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			_, err := ser.Serialize("t", w)
			return err
		})
	}
	inside.Wait()
	warm.Store(true)
	close(release)
	require.NoError(t, g.Wait())
	require.Equal(t, workers, ser.Created())

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				if _, err := ser.Serialize("t", r); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, workers, ser.Created())
	assert.Equal(t, workers, supplier.count())
}

func TestSequentialCallsReuseOneInstance(t *testing.T) {
	supplier := &countingSupplier{}
	deser := NewDeserializer(supplier.deserializer)

	for i := 0; i < 5; i++ {
		v, err := deser.Deserialize("t", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "x", v)
	}
	assert.Equal(t, 1, deser.Created())
}

func TestSupplierFailureSurfacesAtFirstUse(t *testing.T) {
	calls := 0
	ser := NewSerializer(func() (serde.Serializer, error) {
		calls++
		return nil, fmt.Errorf("%w: connection refused", serde.ErrRegistryConnectivity)
	})
	assert.Equal(t, 0, calls)

	_, err := ser.Serialize("t", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, serde.ErrRegistryConnectivity)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, ser.Created())
}

func TestRecordErrorKeepsInstance(t *testing.T) {
	supplier := &countingSupplier{}
	ser := NewSerializer(supplier.serializer)

	_, err := ser.Serialize("t", "bad")
	assert.ErrorIs(t, err, serde.ErrSerialization)

	out, err := ser.Serialize("t", "ok")
	require.NoError(t, err)
	assert.Equal(t, []byte("0:ok"), out)
	assert.Equal(t, 1, supplier.count())
}

func TestClose(t *testing.T) {
	supplier := &countingSupplier{}
	ser := NewSerializer(supplier.serializer)

	_, err := ser.Serialize("t", "x")
	require.NoError(t, err)
	require.NoError(t, ser.Close())
	assert.True(t, supplier.instances[0].closed.Load())

	_, err = ser.Serialize("t", "x")
	assert.True(t, errors.Is(err, serde.ErrClosed))

	assert.NoError(t, ser.Close())
}

func TestFullIdleSetClosesOverflow(t *testing.T) {
	const callers = 3

	var inside sync.WaitGroup
	inside.Add(callers)
	release := make(chan struct{})
	supplier := &countingSupplier{onCall: func() {
		inside.Done()
		<-release
	}}
	ser := NewSerializer(supplier.serializer, WithMaxIdle(1))

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := ser.Serialize("t", i)
			return err
		})
	}
	inside.Wait()
	close(release)
	require.NoError(t, g.Wait())

	closed := 0
	for _, inst := range supplier.instances {
		if inst.closed.Load() {
			closed++
		}
	}
	assert.Equal(t, callers-1, closed)
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, ctx)
}

func TestObserverSeesInstanceCreation(t *testing.T) {
	obs := &recordingObserver{}
	supplier := &countingSupplier{}
	ser := NewSerializer(supplier.serializer, WithObserver(obs), WithName("orders"))

	_, err := ser.Serialize("t", "x")
	require.NoError(t, err)
	_, err = ser.Serialize("t", "y")
	require.NoError(t, err)

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "serde", obs.ops[0].Component)
	assert.Equal(t, "instance_created", obs.ops[0].Operation)
	assert.Equal(t, "orders", obs.ops[0].Resource)
	assert.Equal(t, "serializer", obs.ops[0].SubResource)
}
