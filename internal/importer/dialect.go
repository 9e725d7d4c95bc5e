package importer

// Dialect identifies a recognized CSV export layout.
type Dialect int

const (
	DialectUnknown Dialect = iota
	// DialectLibib is the Libib export layout: capitalized headers, authors
	// joined with semicolons, a bare publication year.
	DialectLibib
	// DialectLibraryThing covers LibraryThing and CLZ exports: snake_case
	// headers, comma-joined creators, full publish dates.
	DialectLibraryThing
)

func (d Dialect) String() string {
	switch d {
	case DialectLibib:
		return "libib"
	case DialectLibraryThing:
		return "librarything"
	default:
		return "unknown"
	}
}

// DetectDialect classifies a header row by its field set. Headers matching
// neither signature yield DialectUnknown, which is not an error; the
// orchestrator skips every row of such a file.
func DetectDialect(header []string) Dialect {
	fields := make(map[string]bool, len(header))
	for _, h := range header {
		fields[h] = true
	}

	if fields["Type"] && fields["Authors"] {
		return DialectLibib
	}
	if fields["item_type"] && fields["creators"] && fields["ean_isbn13"] {
		return DialectLibraryThing
	}
	return DialectUnknown
}
