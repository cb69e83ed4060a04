package pool

// Observer receives pool lifecycle notifications. Implementations must not
// call back into the pool.
type Observer interface {
	OnAcquire(Status)
	OnRelease(Status)
	OnGrow(n int, s Status)
	OnExhausted(Status)
}

type noopObserver struct{}

func (noopObserver) OnAcquire(Status)   {}
func (noopObserver) OnRelease(Status)   {}
func (noopObserver) OnGrow(int, Status) {}
func (noopObserver) OnExhausted(Status) {}
