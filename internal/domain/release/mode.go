package release

// Mode selects between the binary WAR artifact and the source snapshot.
type Mode int

const (
	// ModeWAR downloads the prebuilt web archive.
	ModeWAR Mode = iota
	// ModeSource downloads the source snapshots of the webapp and the suite.
	ModeSource
)

// ModeFromFlag maps the --src flag onto a Mode.
func ModeFromFlag(src bool) Mode {
	if src {
		return ModeSource
	}

	return ModeWAR
}

// String returns "war" or "source".
func (m Mode) String() string {
	if m == ModeSource {
		return "source"
	}

	return "war"
}
