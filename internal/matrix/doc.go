// Package matrix drives the video routing matrix over its line-oriented
// TCP control protocol.
//
// The Link owns the single device connection and serialises all traffic;
// the Gateway layers permission checks, status caching, audit, and event
// publication on top of it.
package matrix
