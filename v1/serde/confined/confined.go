package confined

import (
	"github.com/Aleph-Alpha/serde/v1/serde"
)

// Serializer is a serde.Serializer safe for concurrent use built from
// instances that are not. Each call runs on an instance no other call holds.
type Serializer struct {
	pool *pool[serde.Serializer]
}

// NewSerializer wraps supplier. Nothing is built until the first call; a
// supplier failure is returned to the call that triggered it.
func NewSerializer(supplier func() (serde.Serializer, error), opts ...Option) *Serializer {
	return &Serializer{pool: newPool("serializer", supplier, opts)}
}

// Serialize runs on a private instance. A failed record leaves the instance
// usable and it goes back to the idle set.
func (s *Serializer) Serialize(topic string, data any) ([]byte, error) {
	inst, err := s.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer s.pool.release(inst)
	return inst.Serialize(topic, data)
}

// Created reports how many instances the supplier has built.
func (s *Serializer) Created() int {
	return int(s.pool.created.Load())
}

// Close releases idle instances; later calls fail with serde.ErrClosed.
func (s *Serializer) Close() error {
	return s.pool.close()
}

// Deserializer is the deserializing counterpart of Serializer.
type Deserializer struct {
	pool *pool[serde.Deserializer]
}

// NewDeserializer wraps supplier; see NewSerializer.
func NewDeserializer(supplier func() (serde.Deserializer, error), opts ...Option) *Deserializer {
	return &Deserializer{pool: newPool("deserializer", supplier, opts)}
}

// Deserialize runs on a private instance.
func (d *Deserializer) Deserialize(topic string, data []byte) (any, error) {
	inst, err := d.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer d.pool.release(inst)
	return inst.Deserialize(topic, data)
}

// Created reports how many instances the supplier has built.
func (d *Deserializer) Created() int {
	return int(d.pool.created.Load())
}

// Close releases idle instances; later calls fail with serde.ErrClosed.
func (d *Deserializer) Close() error {
	return d.pool.close()
}
