package realtime

// Recorder receives delivery and eviction counts. The monitoring package provides the Prometheus one.
type Recorder interface {
	Delivered(kind string, n int)
	SendFailed(reason string)
	Evicted(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Delivered(string, int) {}
func (nopRecorder) SendFailed(string)     {}
func (nopRecorder) Evicted(string)        {}
