package testsupport

import "testing"

// WriteText writes a plain-text file under dir and returns its path. Intake
// must never queue it.
func WriteText(t testing.TB, dir, name, content string) string {
	t.Helper()
	return WriteImage(t, dir, name, []byte(content))
}
