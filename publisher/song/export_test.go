package song

import "time"

// IDAtForTest exposes idAt.
func (s Song) IDAtForTest(now time.Time) string {
	return s.idAt(now)
}
