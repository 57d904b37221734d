// Package processor drives translation requests from the command line.
// It runs single terms with streaming progress output, works through
// batch files and prints a summary. It is the bridge between the cli
// flags and the pipeline assembled by the app package.
package processor
