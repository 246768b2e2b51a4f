package netsup

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"strings"
	"time"
)

// mDNS is deliberately the one ambient piece of this module built on the
// standard library rather than a pack dependency: nothing in the retrieved
// example repos touches multicast DNS, and the protocol is small enough that
// hand-rolling the handful of records a "canlogger.local" advertisement
// needs is less risk than pulling in an unvetted dependency for it.

const (
	mdnsAddr     = "224.0.0.251:5353"
	mdnsHostname = "canlogger"
	mdnsService  = "_http._tcp"
	mdnsPort     = 80
	mdnsTTL      = 120
	announceEvery = 60 * time.Second
)

// Announcer periodically emits unsolicited mDNS records advertising
// "canlogger.local" and an HTTP service at mdnsPort, the same two facts
// ESPmDNS.begin()/addService() publish in the original firmware. It
// announces rather than fully implementing query/response because nothing
// in this logger's control plane depends on being found faster than
// announceEvery — control apps are expected to retry discovery.
type Announcer struct {
	driver Driver
	logger *slog.Logger
	conn   *net.UDPConn
}

// NewAnnouncer resolves the mDNS multicast group; Start begins sending.
func NewAnnouncer(driver Driver, logger *slog.Logger) (*Announcer, error) {
	addr, err := net.ResolveUDPAddr("udp4", mdnsAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Announcer{driver: driver, logger: logger, conn: conn}, nil
}

// Start sends an announcement immediately and then every announceEvery
// until ctx is canceled.
func (a *Announcer) Start(ctx context.Context) {
	a.announce()
	ticker := time.NewTicker(announceEvery)
	defer ticker.Stop()
	defer a.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.announce()
		}
	}
}

func (a *Announcer) announce() {
	ip := net.ParseIP(a.driver.LocalIP())
	if ip == nil || ip.To4() == nil {
		a.logger.Warn("mdns: no usable local IPv4 address, skipping announcement")
		return
	}
	msg := buildAnnouncement(ip.To4())
	if _, err := a.conn.Write(msg); err != nil {
		a.logger.Warn("mdns: send failed", "err", err)
	}
}

// buildAnnouncement constructs a minimal mDNS response packet carrying an A
// record for "<mdnsHostname>.local", a PTR record for the HTTP service type,
// and an SRV record pointing the service instance back at the hostname.
func buildAnnouncement(ipv4 net.IP) []byte {
	var buf []byte

	// Header: ID=0, flags=authoritative response, 0 questions, 3 answers.
	buf = appendUint16(buf, 0)      // ID
	buf = appendUint16(buf, 0x8400) // QR=1, AA=1
	buf = appendUint16(buf, 0)      // QDCOUNT
	buf = appendUint16(buf, 3)      // ANCOUNT
	buf = appendUint16(buf, 0)      // NSCOUNT
	buf = appendUint16(buf, 0)      // ARCOUNT

	hostFQDN := mdnsHostname + ".local"
	serviceFQDN := mdnsService + ".local"
	instanceFQDN := mdnsHostname + "." + serviceFQDN

	// A record: hostFQDN -> ipv4.
	buf = appendName(buf, hostFQDN)
	buf = appendUint16(buf, 1) // TYPE A
	buf = appendUint16(buf, 1) // CLASS IN
	buf = appendUint32(buf, mdnsTTL)
	buf = appendUint16(buf, 4)
	buf = append(buf, ipv4...)

	// PTR record: serviceFQDN -> instanceFQDN.
	buf = appendName(buf, serviceFQDN)
	buf = appendUint16(buf, 12) // TYPE PTR
	buf = appendUint16(buf, 1)
	buf = appendUint32(buf, mdnsTTL)
	ptrTarget := encodeName(instanceFQDN)
	buf = appendUint16(buf, uint16(len(ptrTarget)))
	buf = append(buf, ptrTarget...)

	// SRV record: instanceFQDN -> priority/weight/port/target.
	buf = appendName(buf, instanceFQDN)
	buf = appendUint16(buf, 33) // TYPE SRV
	buf = appendUint16(buf, 0x8001) // CLASS IN with the cache-flush bit set
	buf = appendUint32(buf, mdnsTTL)
	srvTarget := encodeName(hostFQDN)
	rdata := make([]byte, 0, 6+len(srvTarget))
	rdata = appendUint16(rdata, 0) // priority
	rdata = appendUint16(rdata, 0) // weight
	rdata = appendUint16(rdata, mdnsPort)
	rdata = append(rdata, srvTarget...)
	buf = appendUint16(buf, uint16(len(rdata)))
	buf = append(buf, rdata...)

	return buf
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendName(b []byte, fqdn string) []byte {
	return append(b, encodeName(fqdn)...)
}

// encodeName renders a dotted name as length-prefixed DNS labels terminated
// by a zero-length root label. No compression pointers are used — every
// name in this small announcement is written out in full.
func encodeName(fqdn string) []byte {
	labels := strings.Split(fqdn, ".")
	var out []byte
	for _, l := range labels {
		if l == "" {
			continue
		}
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	out = append(out, 0)
	return out
}
