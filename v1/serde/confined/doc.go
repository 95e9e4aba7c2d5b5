// Package confined makes codecs that must not be shared safe for concurrent
// use without locking them.
//
// A wrapper holds a supplier of fresh instances. Every call checks out an idle
// instance, or builds one if none is idle, runs on it, and parks it again.
// No instance is ever used by two calls at the same time, so the number of
// instances grows to the peak number of concurrent callers and no further.
//
//	ser := confined.NewSerializer(func() (serde.Serializer, error) {
//	    return newUnsafeSerializer()
//	}, confined.WithMaxIdle(8))
//	defer ser.Close()
//
// Instances implementing io.Closer are closed when they are dropped from a
// full idle set and when the wrapper is closed.
package confined
