// Package jurikit turns DILA open data archives of French court decisions
// into flat JSON lines datasets, one per corpus.
package jurikit

const (
	AppName = "jurikit"
	Version = "0.1.0"
)
