// Package api exposes the daemon's HTTP surface: run submission, run status
// lookup, run listing, and the health probe. It translates requests into
// pipeline submissions and run-state reads without coupling handlers to a
// particular driver.
package api
