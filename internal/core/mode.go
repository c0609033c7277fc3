// Package core is the orchestration layer.  It joins a frame source to
// a decode session and provides a builder that selects the source from
// a Config.
//
// Architecture layers (bottom → top):
//
//	rotor → frame → framelog → session
//	transport ─────────────────┴→ core → cmd (CLI)
package core

import "context"

// Mode is a complete run of prt7, from opening the source to printing
// the decoded message.
type Mode interface {
	Run(ctx context.Context) error
}
