// Package netsup is the network supervisor (C11): a poll-driven state
// machine that keeps the access point up, attempts configured station
// networks in order with a two-strike-per-SSID failure policy, disables
// station mode once every configured network is exhausted, and runs
// periodic background scans while idle. Ported from the polling loop()/
// begin_next_network()/handle_sta_failure() functions in
// original_source/src/net/net_manager.cpp, generalized behind a Driver
// interface since no real Wi-Fi radio is reachable from this host.
package netsup

// Status is the asynchronous connection state the Driver reports back,
// mirroring WiFi.status() in the original — BeginConnect kicks an attempt
// off without blocking, and the supervisor polls Status() every tick.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

// ScanResult is one access point seen during a scan, matching WifiScanEntry
// in original_source/include/net/net_manager.h.
type ScanResult struct {
	SSID        string
	RSSIDbm     int8
	RSSIPercent uint8
	Channel     uint8
	Secure      bool
}

// Driver abstracts the Wi-Fi radio. The only implementation in this module
// is SimDriver; a real deployment would back this with the platform's
// station/AP/scan API.
type Driver interface {
	// BeginConnect starts an asynchronous station connection attempt.
	BeginConnect(ssid, password string) error
	// Status reports the outcome of the most recent BeginConnect.
	Status() Status
	// Disconnect tears down any station connection or attempt in progress.
	Disconnect()

	// StartAP brings the access point up if it is not already. Idempotent.
	StartAP(ssid, password string) error
	StopAP()
	APClientCount() int

	// Scan performs (or polls) a network scan, returning up to
	// MaxScanResults entries.
	Scan() ([]ScanResult, error)

	// LocalIP returns the station or AP address currently bound, used by
	// the mDNS announcer. Empty if none.
	LocalIP() string
}

// RSSIToPercent maps an RSSI dBm reading to a 0-100 signal-quality percent,
// ported from rssi_to_percent in the original.
func RSSIToPercent(dbm int8) uint8 {
	if dbm <= -100 {
		return 0
	}
	if dbm >= -50 {
		return 100
	}
	return uint8((int(dbm) + 100) * 2)
}
