// Package logging configures structured JSON logging for claridoc.
// Records go to a size-rotated file under ~/.claridoc/logs/ and,
// unless disabled, to stderr as well.
package logging
