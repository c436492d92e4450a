package model

// TrackMetadata describes one playable track. Derived from file tags with
// filename/"Unknown" fallbacks; immutable once computed.
type TrackMetadata struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"` // seconds, 0 when unknown
	Filepath string  `json:"filepath"` // track identifier, relative to the library root
}

// TrackEntry is the /tracks listing shape: metadata plus presentation fields.
type TrackEntry struct {
	TrackMetadata
	Filename string `json:"filename"`
	InQueue  bool   `json:"in_queue"`
}

// QueueInfo is a consistent snapshot of the playback queue.
type QueueInfo struct {
	Queue     []string       `json:"queue"` // display names, head first
	Length    int            `json:"length"`
	NextTrack *TrackMetadata `json:"next_track"`
}

// Status is the /status payload.
type Status struct {
	Playing         bool           `json:"playing"`
	Metadata        TrackMetadata  `json:"metadata"`
	CurrentTime     float64        `json:"current_time"`
	NextTrack       *TrackMetadata `json:"next_track"`
	AvailableTracks int            `json:"available_tracks"`
	QueueLength     int            `json:"queue_length"`
	Queue           []string       `json:"queue"`
}

// Command actions understood by the producer's command listener.
const (
	CommandAddToQueue      = "add_to_queue"
	CommandRemoveFromQueue = "remove_from_queue"
	CommandReloadTracks    = "reload_tracks"
)

// Command is an ephemeral control message delivered at-most-once over the
// replication channel. Lost if no producer is subscribed at publish time.
type Command struct {
	Action   string `json:"action"`
	Filepath string `json:"filepath,omitempty"`
}

// OpResult is the success/message contract shared by all mutating operations.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
