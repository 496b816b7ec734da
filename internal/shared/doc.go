// Package shared holds code used by several packages that belongs to none
// of them. Today that is testutil: log capture and panel fixtures for tests.
package shared
