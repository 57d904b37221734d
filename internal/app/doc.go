// Package app is the composition root. It opens the SQLite store and
// builds the scheduler, response cache, providers and orchestrator that
// the commands share, and runs periodic cache maintenance until closed.
package app
