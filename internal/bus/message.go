package bus

import "github.com/bamsammich/dirsync/internal/entry"

// Tag is the recipient routing key of a message.
type Tag int

const (
	Orchestrator Tag = iota
	SourceLister
	DestinationLister
	SourceAnalyzers
	DestinationAnalyzers

	numTags
)

var tagNames = [...]string{
	Orchestrator:         "orchestrator",
	SourceLister:         "source-lister",
	DestinationLister:    "destination-lister",
	SourceAnalyzers:      "source-analyzers",
	DestinationAnalyzers: "destination-analyzers",
}

func (t Tag) String() string {
	if t >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// Valid reports whether t names one of the bus tags.
func (t Tag) Valid() bool { return t >= 0 && t < numTags }

// Tags returns every tag the bus routes.
func Tags() []Tag {
	return []Tag{Orchestrator, SourceLister, DestinationLister, SourceAnalyzers, DestinationAnalyzers}
}

// Kind identifies the payload of a message.
type Kind int

const (
	AnalyzeDirectory Kind = iota + 1
	AnalyzeFile
	FileAnalyzed
	SourceEntryFound
	DestinationEntryFound
	SourceListComplete
	DestinationListComplete
	Terminate
	TerminateAck
)

var kindNames = [...]string{
	AnalyzeDirectory:        "AnalyzeDirectory",
	AnalyzeFile:             "AnalyzeFile",
	FileAnalyzed:            "FileAnalyzed",
	SourceEntryFound:        "SourceEntryFound",
	DestinationEntryFound:   "DestinationEntryFound",
	SourceListComplete:      "SourceListComplete",
	DestinationListComplete: "DestinationListComplete",
	Terminate:               "Terminate",
	TerminateAck:            "TerminateAck",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Message is one value carried on the bus.
//
// Path is set for AnalyzeDirectory and AnalyzeFile. Entry is set for
// FileAnalyzed and the *EntryFound kinds. Seq pairs an AnalyzeFile with its
// FileAnalyzed. Err is the error marker on FileAnalyzed (probe failure) and
// on *ListComplete (the side could not be listed). Worker identifies the
// sender; the orchestrator checks it on TerminateAck.
type Message struct {
	Err    error
	Path   string
	Entry  entry.Entry
	Seq    int
	Worker int
	Kind   Kind
}
