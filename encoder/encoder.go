// Package encoder writes captured 16-bit mono PCM as FLAC.
package encoder

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)
