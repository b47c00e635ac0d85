// Package baseline implements the Baseline Service (§4.8): a local-
// filesystem reference implementation that stores baseline images and
// their metadata for the Baseline Comparison detector to read back by
// scene id. Grounded in the reference lineage's local-storage idiom
// (internal/storage/local.go's secure-path-join pattern) but scoped down
// to this module's narrower contract: one JPEG per baseline plus a shared
// metadata index, with no cloud-provider surface.
package baseline

import "time"

// Record is a persisted Baseline Record (§3): identity, display metadata,
// and a tag list. The image itself lives alongside it as a JPEG file keyed
// by ID; Record does not embed the image bytes.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
