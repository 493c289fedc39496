package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog/log"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// pcapngMagic is the block type of a pcapng section header. It reads the
// same in both byte orders.
const pcapngMagic = 0x0A0D0D0A

const (
	dhcpServerPort = 67
	dhcpClientPort = 68
)

// GopacketParser reads DHCPv4 frames from a pcap or pcapng capture.
type GopacketParser struct {
	PcapFile   string
	ClientOnly bool // Keep BOOTREQUEST frames only

	errorHandler ErrorHandler
}

func NewGopacketParser(pcapFile string) *GopacketParser {
	return &GopacketParser{
		PcapFile:     pcapFile,
		errorHandler: NewNoOpErrorHandler(),
	}
}

// SetErrorHandler sets the error handler for the parser
func (p *GopacketParser) SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		handler = NewNoOpErrorHandler()
	}
	p.errorHandler = handler
}

// GetErrorHandler returns the current error handler
func (p *GopacketParser) GetErrorHandler() ErrorHandler {
	return p.errorHandler
}

// ParseFile reads PcapFile and returns one observation per DHCPv4 frame.
func (p *GopacketParser) ParseFile() ([]*model.Observation, error) {
	f, err := os.Open(p.PcapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap: %w", err)
	}
	defer f.Close()

	observations, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.PcapFile, err)
	}
	return observations, nil
}

// Parse reads a capture from r.
func (p *GopacketParser) Parse(r io.Reader) ([]*model.Observation, error) {
	packetSource, err := newPacketSource(r)
	if err != nil {
		return nil, err
	}

	var (
		observations []*model.Observation
		frame        int
	)
	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Warn().Int("frame", frame+1).Msg("Capture ends with a truncated frame")
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %d: %w", frame+1, err)
		}
		frame++

		obs, decodeErr := p.decode(frame, packet)
		if decodeErr != nil {
			if err := p.errorHandler.HandleDecodeError(decodeErr); err != nil {
				return nil, err
			}
			continue
		}
		if obs != nil {
			observations = append(observations, obs)
		}
	}

	log.Debug().
		Int("frames", frame).
		Int("dhcp_frames", len(observations)).
		Bool("client_only", p.ClientOnly).
		Msg("Parsed capture")
	return observations, nil
}

func newPacketSource(r io.Reader) (*gopacket.PacketSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	if binary.BigEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng: %w", err)
		}
		return gopacket.NewPacketSource(ng, ng.LinkType()), nil
	}

	handle, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap: %w", err)
	}
	return gopacket.NewPacketSource(handle, handle.LinkType()), nil
}

// decode returns nil, nil for frames that are not DHCPv4.
func (p *GopacketParser) decode(frame int, packet gopacket.Packet) (*model.Observation, *DecodeError) {
	dhcpLayer := packet.Layer(layers.LayerTypeDHCPv4)
	if dhcpLayer == nil {
		if errLayer := packet.ErrorLayer(); errLayer != nil && isDHCPTraffic(packet) {
			return nil, &DecodeError{
				Layer:       layers.LayerTypeDHCPv4.String(),
				Frame:       frame,
				Packet:      packet,
				Err:         errLayer.Error(),
				Timestamp:   packet.Metadata().Timestamp,
				Recoverable: true,
			}
		}
		return nil, nil
	}

	dhcpv4 := dhcpLayer.(*layers.DHCPv4)
	if p.ClientOnly && dhcpv4.Operation != layers.DHCPOpRequest {
		return nil, nil
	}

	dhcp := ConvertDHCPv4(dhcpv4)
	obs := &model.Observation{
		Timestamp:     packet.Metadata().Timestamp,
		TransactionID: dhcpv4.Xid,
		Operation:     uint8(dhcpv4.Operation),
	}

	var ip4 *layers.IPv4
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip4 = ipLayer.(*layers.IPv4)
		obs.Packets = append(obs.Packets, &model.IPv4Packet{TTL: ip4.TTL})
	}
	obs.Packets = append(obs.Packets, dhcp)

	obs.ClientMAC = clientMAC(dhcpv4, packet)
	obs.ClientIP = clientIP(dhcpv4, dhcp)
	obs.ServerIP = serverIP(dhcpv4, dhcp, ip4)
	return obs, nil
}

// ConvertDHCPv4 copies the fields the fingerprinter needs out of a gopacket
// layer. Pad and End options are dropped.
func ConvertDHCPv4(d *layers.DHCPv4) *model.DHCPPacket {
	out := &model.DHCPPacket{Options: make([]model.DHCPOption, 0, len(d.Options))}
	for _, o := range d.Options {
		code := uint8(o.Type)
		if code == model.DHCPOptPad || code == model.DHCPOptEnd {
			continue
		}
		out.Options = append(out.Options, model.DHCPOption{
			Code:  code,
			Value: append([]byte(nil), o.Data...),
		})
	}
	if mt, ok := out.Option(model.DHCPOptMessageType); ok && len(mt.Value) > 0 {
		out.MessageType = mt.Value[0]
	}
	return out
}

func isDHCPTraffic(packet gopacket.Packet) bool {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return false
	}
	udp := udpLayer.(*layers.UDP)
	for _, port := range []layers.UDPPort{udp.SrcPort, udp.DstPort} {
		if port == dhcpServerPort || port == dhcpClientPort {
			return true
		}
	}
	return false
}

// clientMAC prefers chaddr and falls back to the Ethernet source of requests.
func clientMAC(d *layers.DHCPv4, packet gopacket.Packet) string {
	if len(d.ClientHWAddr) == 6 {
		return d.ClientHWAddr.String()
	}
	if d.Operation != layers.DHCPOpRequest {
		return ""
	}
	if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		return ethLayer.(*layers.Ethernet).SrcMAC.String()
	}
	return ""
}

// clientIP is ciaddr, else the offered yiaddr, else the requested address.
func clientIP(d *layers.DHCPv4, dhcp *model.DHCPPacket) net.IP {
	for _, ip := range []net.IP{d.ClientIP, d.YourClientIP} {
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsUnspecified() {
			return ip4
		}
	}
	if o, ok := dhcp.Option(uint8(layers.DHCPOptRequestIP)); ok && len(o.Value) == 4 {
		return net.IP(o.Value)
	}
	return nil
}

// serverIP is the server identifier option, else the IP source of replies.
func serverIP(d *layers.DHCPv4, dhcp *model.DHCPPacket, ip4 *layers.IPv4) net.IP {
	if o, ok := dhcp.Option(uint8(layers.DHCPOptServerID)); ok && len(o.Value) == 4 {
		return net.IP(o.Value)
	}
	if d.Operation == layers.DHCPOpReply && ip4 != nil {
		return ip4.SrcIP
	}
	return nil
}
