// Command headunit connects to a phone and runs the head-unit messenger.
//
// The link is either a USB accessory endpoint (-device) or a TCP connection
// (-connect). Without either the head unit starts against the simulated
// transport, which is useful for checking a configuration file. The session key
// is given with -key or negotiated with -noise. Configuration comes from
// -config and HEADUNIT_* environment variables, as described in package factory.
package main
