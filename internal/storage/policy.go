package storage

// Severity decides what a failed batch item means for the operation
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityWarning
)

// Policy maps actions to severities. Actions it does not name are fatal.
type Policy map[Action]Severity

func (p Policy) SeverityOf(a Action) Severity {
	if s, ok := p[a]; ok {
		return s
	}
	return SeverityFatal
}

// putPolicy: the container may already exist or be created implicitly by
// the object upload, so failing to create it is only a warning.
var putPolicy = Policy{
	ActionCreateContainer: SeverityWarning,
	ActionUploadObject:    SeverityFatal,
}
