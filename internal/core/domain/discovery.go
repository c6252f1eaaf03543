package domain

// Status messages recorded with lifecycle transitions.
const (
	MsgReadyForProcessing = "Ready for processing"
	MsgFileModified       = "File modified, ready for re-processing"
	MsgQueued             = "Queued for processing"
	MsgProcessingStarted  = "Processing started"
	MsgIndexed            = "Successfully indexed"
	MsgReset              = "Reset for re-processing"
	MsgInterrupted        = "Interrupted, reset for re-processing"
	MsgWorkerCrashed      = "Worker crashed while processing"
)

// DiscoveryReport summarises one scan of the documents directory.
type DiscoveryReport struct {
	// Scanned is the number of supported files found.
	Scanned int

	// Registered is the number of files seen for the first time.
	Registered int

	// Modified is the number of known files whose hash changed.
	Modified int

	// Unchanged is the number of known files with the same hash.
	Unchanged int

	// Failed is the number of files that could not be hashed or stored.
	Failed int

	// DocIDs lists the registered and modified documents, now New.
	DocIDs []int64
}
