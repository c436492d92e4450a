package audio

// Metadata holds the tag fields the radio cares about.
type Metadata struct {
	Title    string
	Artist   string
	Duration float64 // seconds
}

// Processor abstracts the external encoder toolchain so the library and the
// upload pipeline can be tested without ffmpeg installed.
type Processor interface {
	// Probe extracts tags and duration from an audio file.
	Probe(inputFile string) (Metadata, error)
	// ConvertToAAC produces a playback-ready AAC rendition of inputFile.
	ConvertToAAC(inputFile, outputFile string, meta Metadata) error
	// GenerateSilence writes a silent AAC file of the given duration.
	GenerateSilence(outputFile string, durationSeconds int) error
}
