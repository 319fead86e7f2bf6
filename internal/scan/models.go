package scan

// Role designates what a file contributes to a scan triplet. It is the
// trailing letter of the file extension.
type Role byte

const (
	RoleDisposition Role = 'D'
	RoleRecto       Role = 'R'
	RoleVerso       Role = 'V'
)

func (r Role) String() string {
	switch r {
	case RoleDisposition:
		return "disposition"
	case RoleRecto:
		return "recto"
	case RoleVerso:
		return "verso"
	default:
		return "unknown"
	}
}

// Group is the set of files sharing one basename. Paths are absolute or
// relative to the scanned root, exactly as discovered.
type Group struct {
	Name        string
	Disposition string
	Recto       string
	Verso       string
}

// Complete reports whether all three roles are present.
func (g Group) Complete() bool {
	return g.Disposition != "" && g.Recto != "" && g.Verso != ""
}

// Missing lists the roles without a file.
func (g Group) Missing() []Role {
	var missing []Role
	if g.Disposition == "" {
		missing = append(missing, RoleDisposition)
	}
	if g.Recto == "" {
		missing = append(missing, RoleRecto)
	}
	if g.Verso == "" {
		missing = append(missing, RoleVerso)
	}
	return missing
}

// Files returns the triplet in disposition, recto, verso order.
func (g Group) Files() []string {
	return []string{g.Disposition, g.Recto, g.Verso}
}

func (g *Group) set(role Role, path string) (previous string) {
	switch role {
	case RoleDisposition:
		previous, g.Disposition = g.Disposition, path
	case RoleRecto:
		previous, g.Recto = g.Recto, path
	case RoleVerso:
		previous, g.Verso = g.Verso, path
	}
	return previous
}

// SkippedEntry is a directory entry that could not be inspected.
type SkippedEntry struct {
	Path string
	Err  error
}

// Result is the outcome of one discovery walk.
type Result struct {
	// Groups holds complete triplets sorted by Name.
	Groups []Group
	// Skipped holds entries whose metadata could not be read.
	Skipped []SkippedEntry
	// Incomplete counts groups dropped for a missing role.
	Incomplete int
}
