package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewVersion returns an id of the form <algorithm>_<YYYYMMDD>_<HHMMSS>_<suffix>.
// The random suffix keeps ids unique when two runs start within a second.
func NewVersion(algorithm string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", algorithm, at.UTC().Format("20060102_150405"), suffix)
}
