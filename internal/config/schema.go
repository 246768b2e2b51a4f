package config

import (
	"bytes"
	"encoding/binary"
)

// Fixed field widths, carried over from the original firmware's char[] buffers
// (original_source/include/config/app_config.h) so the wire format stays
// length-discriminated: every historical layout has one unambiguous byte size.
const (
	busNameLen = 16
	ssidLen    = 32
	passLen    = 64
	urlLen     = 128
	tokenLen   = 64
	dbcNameLen = 32
)

// busSizeV2, globalSizeV2 and blobSizeV2 describe the current (version 2)
// layout. busSizeV1/globalSizeV1/blobSizeV1 describe the prior layout this
// build can still read: it lacked per-bus ReadOnly and the
// WifiSTAEnabled/CANTimeSync/ManualEpoch/DBCName global fields.
const (
	busSizeV2    = 1 + 4 + 1 + 1 + busNameLen // enabled, bitrate, readOnly, logging, name
	globalSizeV2 = 4 + 4 + 1 + 3*(ssidLen+passLen) + 1 + urlLen + tokenLen + 1 + 8 + dbcNameLen
	blobSizeV2   = 4 + 2 + 2 + MaxBuses*busSizeV2 + globalSizeV2

	busSizeV1    = 1 + 4 + 1 + busNameLen // enabled, bitrate, logging, name (no readOnly)
	globalSizeV1 = 4 + 4 + 1 + 3*(ssidLen+passLen) + urlLen + tokenLen
	blobSizeV1   = 4 + 2 + 2 + MaxBuses*busSizeV1 + globalSizeV1
)

// Encode serializes c in the current (version 2) layout.
func Encode(c Config) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(blobSizeV2)

	binary.Write(buf, binary.LittleEndian, Magic)          //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, CurrentVersion)  //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, uint16(0))       //nolint:errcheck // reserved

	for _, b := range c.Buses {
		writeBool(buf, b.Enabled)
		binary.Write(buf, binary.LittleEndian, b.Bitrate) //nolint:errcheck
		writeBool(buf, b.ReadOnly)
		writeBool(buf, b.Logging)
		writeFixedString(buf, b.Name, busNameLen)
	}

	g := c.Global
	binary.Write(buf, binary.LittleEndian, g.MaxFileBytes)  //nolint:errcheck
	binary.Write(buf, binary.LittleEndian, g.LowSpaceBytes) //nolint:errcheck
	buf.WriteByte(g.WifiCount)
	for _, w := range g.Wifi {
		writeFixedString(buf, w.SSID, ssidLen)
		writeFixedString(buf, w.Password, passLen)
	}
	writeBool(buf, g.WifiSTAEnabled)
	writeFixedString(buf, g.UploadURL, urlLen)
	writeFixedString(buf, g.APIToken, tokenLen)
	writeBool(buf, g.CANTimeSync)
	binary.Write(buf, binary.LittleEndian, g.ManualEpoch) //nolint:errcheck
	writeFixedString(buf, g.DBCName, dbcNameLen)

	return buf.Bytes()
}

// Decode selects a layout by the exact length of data — migration is by
// exact length match — and upconverts it into the current Config.
// Unrecognized lengths return ok=false so the caller installs
// defaults, matching §7's ConfigInvalid policy.
func Decode(data []byte) (Config, bool) {
	switch len(data) {
	case blobSizeV2:
		return decodeV2(data)
	case blobSizeV1:
		return upconvertV1(decodeV1(data))
	default:
		return Config{}, false
	}
}

func decodeV2(data []byte) (Config, bool) {
	r := bytes.NewReader(data)
	var c Config
	if err := binary.Read(r, binary.LittleEndian, &c.Magic); err != nil {
		return Config{}, false
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Version); err != nil {
		return Config{}, false
	}
	var reserved uint16
	binary.Read(r, binary.LittleEndian, &reserved) //nolint:errcheck
	if c.Magic != Magic {
		return Config{}, false
	}

	for i := range c.Buses {
		c.Buses[i].Enabled = readBool(r)
		binary.Read(r, binary.LittleEndian, &c.Buses[i].Bitrate) //nolint:errcheck
		c.Buses[i].ReadOnly = readBool(r)
		c.Buses[i].Logging = readBool(r)
		c.Buses[i].Name = readFixedString(r, busNameLen)
	}

	g := &c.Global
	binary.Read(r, binary.LittleEndian, &g.MaxFileBytes)  //nolint:errcheck
	binary.Read(r, binary.LittleEndian, &g.LowSpaceBytes) //nolint:errcheck
	g.WifiCount, _ = r.ReadByte()
	for i := range g.Wifi {
		g.Wifi[i].SSID = readFixedString(r, ssidLen)
		g.Wifi[i].Password = readFixedString(r, passLen)
	}
	g.WifiSTAEnabled = readBool(r)
	g.UploadURL = readFixedString(r, urlLen)
	g.APIToken = readFixedString(r, tokenLen)
	g.CANTimeSync = readBool(r)
	binary.Read(r, binary.LittleEndian, &g.ManualEpoch) //nolint:errcheck
	g.DBCName = readFixedString(r, dbcNameLen)

	return c, true
}

// v1Config mirrors the prior on-disk layout field-for-field so upconvertV1
// can map it explicitly rather than doing arithmetic on raw bytes, which
// would silently misread any field whose offset moved between versions.
type v1Config struct {
	magic   uint32
	version uint16
	buses   [MaxBuses]struct {
		enabled bool
		bitrate uint32
		logging bool
		name    string
	}
	maxFileBytes  uint32
	lowSpaceBytes uint32
	wifiCount     byte
	wifi          [3]WifiNetwork
	uploadURL     string
	apiToken      string
}

func decodeV1(data []byte) v1Config {
	r := bytes.NewReader(data)
	var v v1Config
	binary.Read(r, binary.LittleEndian, &v.magic)   //nolint:errcheck
	binary.Read(r, binary.LittleEndian, &v.version) //nolint:errcheck
	var reserved uint16
	binary.Read(r, binary.LittleEndian, &reserved) //nolint:errcheck

	for i := range v.buses {
		v.buses[i].enabled = readBool(r)
		binary.Read(r, binary.LittleEndian, &v.buses[i].bitrate) //nolint:errcheck
		v.buses[i].logging = readBool(r)
		v.buses[i].name = readFixedString(r, busNameLen)
	}

	binary.Read(r, binary.LittleEndian, &v.maxFileBytes)  //nolint:errcheck
	binary.Read(r, binary.LittleEndian, &v.lowSpaceBytes) //nolint:errcheck
	v.wifiCount, _ = r.ReadByte()
	for i := range v.wifi {
		v.wifi[i].SSID = readFixedString(r, ssidLen)
		v.wifi[i].Password = readFixedString(r, passLen)
	}
	v.uploadURL = readFixedString(r, urlLen)
	v.apiToken = readFixedString(r, tokenLen)
	return v
}

// upconvertV1 maps every field v1 carried and applies current defaults to
// fields v1 never had (ReadOnly, WifiSTAEnabled, CANTimeSync, ManualEpoch,
// DBCName), rather than silently inheriting whatever garbage sits past the
// old struct's end.
func upconvertV1(v v1Config) (Config, bool) {
	if v.magic != Magic {
		return Config{}, false
	}
	c := Config{Magic: Magic, Version: CurrentVersion}
	for i := range v.buses {
		c.Buses[i] = BusConfig{
			Enabled: v.buses[i].enabled,
			Bitrate: v.buses[i].bitrate,
			Logging: v.buses[i].logging,
			Name:    v.buses[i].name,
			// ReadOnly: defaulted to false — not present in v1.
		}
	}
	c.Global = Global{
		MaxFileBytes:  v.maxFileBytes,
		LowSpaceBytes: v.lowSpaceBytes,
		WifiCount:     v.wifiCount,
		Wifi:          v.wifi,
		UploadURL:     v.uploadURL,
		APIToken:      v.apiToken,
		// WifiSTAEnabled, CANTimeSync, ManualEpoch, DBCName: zero-value defaults.
	}
	return c, true
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) bool {
	b, _ := r.ReadByte()
	return b != 0
}

// writeFixedString copies s into a zero-padded width-byte field, truncating
// silently if s is too long — the same behavior as the original firmware's
// fixed char[] buffers (snprintf truncation), not an error condition.
func writeFixedString(buf *bytes.Buffer, s string, width int) {
	b := make([]byte, width)
	copy(b, s)
	buf.Write(b)
}

func readFixedString(r *bytes.Reader, width int) string {
	b := make([]byte, width)
	r.Read(b) //nolint:errcheck
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = width
	}
	return string(b[:n])
}
