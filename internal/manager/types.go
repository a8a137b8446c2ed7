package manager

// State is the lifecycle state of the single managed model.
type State string

const (
	StateUnavailable State = "unavailable"
	StateDownloading State = "downloading"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateUnloading   State = "unloading"
)

// Status is a read-only projection of the manager state.
type Status struct {
	State     State
	Progress  float64 // download progress in [0,1]; meaningful while downloading
	Tier      Tier
	ModelID   string
	Installed bool
	Runtime   string
	LastOp    string
	Err       string
}
