package importer

import (
	"strconv"
	"strings"
)

// NormalizedRow is one source row translated into a dialect-independent
// shape, consumed once by the orchestrator and discarded.
type NormalizedRow struct {
	IsDigital       bool
	Title           string
	Subtitle        string
	AuthorNames     []string
	ISBN            string
	LCCN            string
	PublisherName   string
	PublicationDate string
	Description     string
	PageCount       *int
	TagNames        []string
	Rating          *float64
	ReadingStatus   string
	Condition       string
	Format          string
	Location        string
}

var readingStatusTable = map[string]string{
	"read":              "completed",
	"completed":         "completed",
	"reading":           "reading",
	"currently reading": "reading",
	"to read":           "to_read",
	"want to read":      "to_read",
	"on hold":           "on_hold",
	"paused":            "on_hold",
	"dropped":           "dropped",
	"dnf":               "dropped",
}

var conditionTable = map[string]string{
	"new":        "new",
	"like new":   "like_new",
	"like-new":   "like_new",
	"excellent":  "like_new",
	"very good":  "very_good",
	"very-good":  "very_good",
	"good":       "good",
	"acceptable": "acceptable",
	"fair":       "acceptable",
	"poor":       "poor",
}

var formatTable = map[string]string{
	"epub":      "epub",
	"pdf":       "pdf",
	"mobi":      "mobi",
	"azw3":      "azw3",
	"azw":       "azw3",
	"mp3":       "mp3",
	"m4a":       "m4a",
	"m4b":       "m4a",
	"mp4":       "mp4",
	"mkv":       "mkv",
	"avi":       "other",
	"ebook":     "epub",
	"audiobook": "mp3",
	"video":     "mp4",
}

// mapReadingStatus translates a free-text status into the catalog enum.
// Unrecognized input is absent, not an error.
func mapReadingStatus(status string) string {
	return readingStatusTable[strings.ToLower(strings.TrimSpace(status))]
}

// mapCondition translates a free-text condition into the catalog enum.
func mapCondition(condition string) string {
	return conditionTable[strings.ToLower(strings.TrimSpace(condition))]
}

// mapFormat translates a file or media label into the catalog format enum.
// Unlike the other two tables this always yields a value for non-empty input;
// anything unrecognized becomes "other".
func mapFormat(format string) string {
	key := strings.ToLower(strings.TrimSpace(format))
	if key == "" {
		return ""
	}
	if mapped, ok := formatTable[key]; ok {
		return mapped
	}
	return "other"
}

// parseRating accepts only numeric values in [0, 5]; anything else is absent.
func parseRating(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// splitNames splits a joined name list on sep, dropping empty segments.
func splitNames(joined, sep string) []string {
	if joined == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(joined, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// containsDigitalMarker reports whether a type/format field classifies the
// row as a digital item.
func containsDigitalMarker(value string) bool {
	lower := strings.ToLower(value)
	return strings.Contains(lower, "ebook") || strings.Contains(lower, "digital")
}

// MapRow translates a raw row into the normalized shape using the dialect's
// column layout. It is only called for recognized dialects.
func MapRow(d Dialect, row Row) NormalizedRow {
	var nr NormalizedRow

	switch d {
	case DialectLibib:
		nr.IsDigital = containsDigitalMarker(row["Type"]) || containsDigitalMarker(row["Format"])
		nr.AuthorNames = splitNames(row["Authors"], ";")
		nr.ISBN = row.get("ISBN", "ISBN13", "ISBN10")
		nr.LCCN = row["LCCN"]
		nr.Title = row["Title"]
		nr.PublisherName = row["Publisher"]
		// Libib exports only a year.
		if year := row.get("Year Published", "Year", "PublicationDate"); year != "" {
			nr.PublicationDate = year + "-01-01"
		}
		nr.Description = row.get("Description", "Notes")

	case DialectLibraryThing:
		nr.IsDigital = containsDigitalMarker(row["item_type"])
		if creators := row["creators"]; creators != "" {
			nr.AuthorNames = splitNames(creators, ",")
		} else if name := strings.TrimSpace(row["first_name"] + " " + row["last_name"]); name != "" {
			nr.AuthorNames = []string{name}
		}
		nr.ISBN = row.get("ean_isbn13", "upc_isbn10")
		nr.LCCN = row.get("lccn", "LCCN")
		nr.Title = row["title"]
		nr.PublisherName = row["publisher"]
		nr.PublicationDate = row["publish_date"]
		nr.Description = row.get("description", "notes")
		if raw := row["length"]; raw != "" {
			if pages, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
				nr.PageCount = &pages
			}
		}
	}

	if nr.Title == "" {
		nr.Title = "Untitled"
	}

	nr.Subtitle = row.get("Subtitle", "subtitle")
	nr.TagNames = splitNames(row.get("Tags", "tags"), ",")
	nr.Rating = parseRating(row.get("Rating", "rating"))
	nr.ReadingStatus = mapReadingStatus(row.get("Status", "status"))
	nr.Condition = mapCondition(row.get("Condition", "condition"))
	nr.Format = mapFormat(row.get("Format", "format"))
	nr.Location = row.get("Location", "location")

	return nr
}
