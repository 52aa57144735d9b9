// Package frame renders simulated events as synthetic Ethernet frames so that
// they can be inspected as hex, decoded layer by layer or exported as pcap.
package frame

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// Header sizes of the synthesized stack.
const (
	ethernetHeaderLen = 14
	ipv4HeaderLen     = 20
	tcpHeaderLen      = 20
	udpHeaderLen      = 8
	icmpHeaderLen     = 8

	tlsRecordHeaderLen = 5
	tlsApplicationData = 23

	snapLen = 65536
)

var sinkMAC = net.HardwareAddr{0x02, 0x00, 0x0a, 0x00, 0x00, 0x80}

// View is the inspectable rendering of one frame.
type View struct {
	EventID string `json:"eventId"`
	Length  int    `json:"length"`
	// Hex is the contiguous lowercase hex string of the frame.
	Hex string `json:"hex"`
	// Dump is the decoded layer dump followed by a canonical hex dump.
	Dump string `json:"dump"`
}

// Encoder builds frames deterministically from event fields.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode serializes event into an Ethernet/IPv4/L4 frame whose total length
// approximates event.Length. Non-IPv4 addresses are rejected.
func (e *Encoder) Encode(event domain.NetworkEvent) ([]byte, error) {
	src := net.ParseIP(event.SourceIP).To4()
	dst := net.ParseIP(event.DestIP).To4()
	if src == nil || dst == nil {
		return nil, fmt.Errorf("frame: event %s has non-IPv4 endpoints %q -> %q", event.ID, event.SourceIP, event.DestIP)
	}

	seed := hashID(event.ID)
	eth := &layers.Ethernet{
		SrcMAC:       macFor(src),
		DstMAC:       sinkMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		Id:      uint16(seed),
		SrcIP:   src,
		DstIP:   dst,
	}

	var l4 []gopacket.SerializableLayer
	headerLen := ethernetHeaderLen + ipv4HeaderLen
	srcPort := 49152 + uint16(seed%16384)

	switch event.Protocol {
	case domain.ProtocolTCP, domain.ProtocolHTTP, domain.ProtocolHTTPS:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(srcPort),
			DstPort: layers.TCPPort(dstPortFor(event.Protocol)),
			Seq:     seed,
			Ack:     seed ^ 0x5a5a5a5a,
			ACK:     true,
			PSH:     true,
			Window:  14600,
		}
		tcp.SetNetworkLayerForChecksum(ip)
		ip.Protocol = layers.IPProtocolTCP
		l4 = append(l4, tcp)
		headerLen += tcpHeaderLen
	case domain.ProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(srcPort),
			DstPort: layers.UDPPort(5321),
		}
		udp.SetNetworkLayerForChecksum(ip)
		ip.Protocol = layers.IPProtocolUDP
		l4 = append(l4, udp)
		headerLen += udpHeaderLen
	case domain.ProtocolICMP:
		ip.Protocol = layers.IPProtocolICMPv4
		l4 = append(l4, &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       uint16(seed >> 16),
			Seq:      1,
		})
		headerLen += icmpHeaderLen
	default:
		return nil, fmt.Errorf("frame: %w: %q", domain.ErrUnknownProtocol, event.Protocol)
	}

	payload := payloadFor(event, headerLen)
	if event.Protocol == domain.ProtocolHTTPS {
		payload = tlsRecord(payloadFor(event, headerLen+tlsRecordHeaderLen))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	stack := append([]gopacket.SerializableLayer{eth, ip}, l4...)
	stack = append(stack, gopacket.Payload(payload))
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("frame: serialize %s: %w", event.ID, err)
	}
	return buf.Bytes(), nil
}

// Inspect encodes event and renders its hex and layer dump.
func (e *Encoder) Inspect(event domain.NetworkEvent) (View, error) {
	data, err := e.Encode(event)
	if err != nil {
		return View{}, err
	}
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	return View{
		EventID: event.ID,
		Length:  len(data),
		Hex:     hex.EncodeToString(data),
		Dump:    packet.Dump(),
	}, nil
}

// WritePcap writes one frame per event to w in pcap format, stamped with the
// event timestamps. Events that cannot be encoded are skipped and counted.
func (e *Encoder) WritePcap(w io.Writer, events []domain.NetworkEvent) (skipped int, err error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return 0, fmt.Errorf("frame: write pcap header: %w", err)
	}

	for _, event := range events {
		data, encErr := e.Encode(event)
		if encErr != nil {
			skipped++
			continue
		}
		ts := event.Timestamp
		if ts.IsZero() {
			ts = time.Unix(0, 0)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return skipped, fmt.Errorf("frame: write packet %s: %w", event.ID, err)
		}
	}
	return skipped, nil
}

func dstPortFor(p domain.Protocol) uint16 {
	switch p {
	case domain.ProtocolHTTP:
		return 80
	case domain.ProtocolHTTPS:
		return 443
	default:
		return 22
	}
}

// payloadFor fills the frame up to the event length with the event info text,
// repeated. Events shorter than the headers carry the info text alone.
func payloadFor(event domain.NetworkEvent, headerLen int) []byte {
	info := []byte(event.Info)
	size := event.Length - headerLen
	if size <= 0 {
		return info
	}
	if len(info) == 0 {
		return make([]byte, size)
	}
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = info[i%len(info)]
	}
	return payload
}

// tlsRecord wraps body as a TLS 1.2 application data record.
func tlsRecord(body []byte) []byte {
	record := make([]byte, 0, tlsRecordHeaderLen+len(body))
	record = append(record, tlsApplicationData, 0x03, 0x03, byte(len(body)>>8), byte(len(body)))
	return append(record, body...)
}

func macFor(ip net.IP) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, ip[0], ip[1], ip[2], ip[3]}
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}
