// Package util holds small generic helpers shared by the server and CLI:
// optional-field overlays and human-readable size parsing.
package util
