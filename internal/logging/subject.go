package logging

import "strings"

// FormatSubject builds the run/item subject string used in console output.
// Run identifiers are shortened to their first eight characters.
func FormatSubject(runID, itemID string) string {
	runID = strings.TrimSpace(runID)
	itemID = strings.TrimSpace(itemID)
	parts := make([]string, 0, 2)
	if runID != "" {
		if len(runID) > 8 {
			runID = runID[:8]
		}
		parts = append(parts, "Run "+runID)
	}
	if itemID != "" {
		parts = append(parts, "Item #"+itemID)
	}
	return strings.Join(parts, " · ")
}
