package bmp

import (
	"encoding/binary"
	"fmt"
)

const peerUpFixedBodyLen = 16 + 2 + 2 // local address + local port + remote port

// decodePeerUp reads a Peer Up Notification body. remaining is the
// number of bytes the common+peer headers declared for this message's
// body. If remaining can't hold the fixed fields, the body is malformed:
// the session logs a notice, drains exactly remaining bytes to stay
// aligned with the next message, and returns errPeerUpBodyTooShort so the
// caller knows no event was emitted. Anything past the fixed fields
// (Sent/Received OPEN messages, in a non-Loc-RIB Peer Up) is drained
// unconditionally, since this package never parses BGP OPEN.
func (s *Session) decodePeerUp(remaining int) error {
	if remaining < peerUpFixedBodyLen {
		s.logger.Notice("bmp: peer-up body too short (%d bytes, need %d)", remaining, peerUpFixedBodyLen)
		if err := s.drainBytes(remaining); err != nil {
			return err
		}
		return errPeerUpBodyTooShort
	}

	b, err := s.src.ReadExact(peerUpFixedBodyLen)
	if err != nil {
		return err
	}

	var localIP string
	if s.Peer.IsIPv4 {
		localIP = formatV4MappedSuffix(b[0:16])
	} else {
		localIP = formatIPv6(b[0:16])
	}
	localPort := binary.BigEndian.Uint16(b[16:18])
	remotePort := binary.BigEndian.Uint16(b[18:20])

	if err := s.drainBytes(remaining - peerUpFixedBodyLen); err != nil {
		return err
	}

	event := &PeerUpEvent{
		PeerHashID: s.Peer.HashID,
		Timestamp:  s.Peer.Timestamp,
		LocalIP:    localIP,
		LocalPort:  localPort,
		RemotePort: remotePort,
	}
	if err := s.sink.AddPeerUpEvent(event); err != nil {
		s.logger.Err("bmp: storing peer-up event: %v", err)
	}
	return nil
}

// decodeStatsReport reads a Statistics Report body: a 4-byte TLV count
// followed by that many (type, length, value) TLVs. A TLV whose length
// is neither 4 nor 8 bytes is skipped without aborting the message; a
// recognized type with an unexpected length is likewise just skipped,
// since spec.md only defines the 4/8-byte encodings for these counters.
func (s *Session) decodeStatsReport(remaining int) error {
	countBytes, err := s.src.ReadExact(4)
	if err != nil {
		return err
	}
	count := binary.BigEndian.Uint32(countBytes)
	consumed := 4

	report := &StatsReport{PeerHashID: s.Peer.HashID}

	for i := uint32(0); i < count; i++ {
		tlvHeader, err := s.src.ReadExact(4)
		if err != nil {
			return err
		}
		consumed += 4
		tlvType := binary.BigEndian.Uint16(tlvHeader[0:2])
		tlvLen := binary.BigEndian.Uint16(tlvHeader[2:4])

		switch tlvLen {
		case 0:
			// Consumed with no counter update, no error.
		case 4:
			v, err := s.src.ReadExact(4)
			if err != nil {
				return err
			}
			consumed += 4
			assignStatsSlot(report, tlvType, uint64(binary.BigEndian.Uint32(v)))
		case 8:
			v, err := s.src.ReadExact(8)
			if err != nil {
				return err
			}
			consumed += 8
			assignStatsSlot(report, tlvType, binary.BigEndian.Uint64(v))
		default:
			if err := s.drainBytes(int(tlvLen)); err != nil {
				return err
			}
			consumed += int(tlvLen)
		}
	}

	if err := s.drainBytes(remaining - consumed); err != nil {
		return err
	}

	return s.sink.AddStatsReport(report)
}

func assignStatsSlot(r *StatsReport, tlvType uint16, v uint64) {
	switch tlvType {
	case StatsTypePrefixesRejected:
		r.PrefixesRejected = v
	case StatsTypeDuplicatePrefix:
		r.DuplicatePrefixes = v
	case StatsTypeDuplicateWithdraw:
		r.DuplicateWithdraws = v
	case StatsTypeInvalidClusterList:
		r.InvalidClusterList = v
	case StatsTypeASPathLoop:
		r.ASPathLoop = v
	case StatsTypeOriginatorID:
		r.OriginatorID = v
	case StatsTypeASConfedLoop:
		r.ASConfedLoop = v
	case StatsTypeRoutesAdjRIBIn:
		r.RoutesAdjRIBIn = v
	case StatsTypeRoutesLocRIB:
		r.RoutesLocRIB = v
		// Unknown type tags are silently skipped; their bytes were
		// already consumed by the caller before assignStatsSlot runs.
	}
}

// decodeInitiation reads an Initiation message body and pushes the
// router record to the sink after each TLV, recognized or not. A body larger
// than maxInitTermBody is drained but never decoded, per spec.md §9's
// correction of the historical source (which left the bytes unread and
// lost framing for the rest of the connection).
func (s *Session) decodeInitiation(bmpLen int) error {
	if bmpLen > maxInitTermBody {
		s.logger.Notice("bmp: initiation body %d bytes exceeds cap %d, draining without decode", bmpLen, maxInitTermBody)
		return s.drainBytes(bmpLen)
	}

	body, err := s.src.ReadExact(bmpLen)
	if err != nil {
		return err
	}

	offset := 0
	for offset+4 <= len(body) {
		tlvType := binary.BigEndian.Uint16(body[offset : offset+2])
		tlvLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+tlvLen > len(body) {
			s.logger.Notice("bmp: initiation TLV length %d exceeds remaining body (%d)", tlvLen, len(body)-offset)
			break
		}
		value := body[offset : offset+tlvLen]
		offset += tlvLen

		switch tlvType {
		case InitTLVString:
			s.Router.InitiateData = truncateBytes(value, maxFreeformLen)
		case InitTLVSysDescr:
			s.Router.SysDescr = truncateString(string(value), maxSysDescrLen)
		case InitTLVSysName:
			s.Router.SysName = truncateString(string(value), maxSysNameLen)
		default:
			s.logger.Notice("bmp: unrecognized initiation TLV type %d (%d bytes discarded)", tlvType, tlvLen)
		}

		if err := s.sink.UpdateRouter(s.Router); err != nil {
			s.logger.Err("bmp: updating router from initiation: %v", err)
		}
	}
	return nil
}

// decodeTermination reads a Termination message body, updates the
// router record in place, and pushes it to the sink once after all TLVs
// are read, so the caller needs no separate persistence step.
func (s *Session) decodeTermination(bmpLen int) error {
	if bmpLen > maxInitTermBody {
		s.logger.Notice("bmp: termination body %d bytes exceeds cap %d, draining without decode", bmpLen, maxInitTermBody)
		return s.drainBytes(bmpLen)
	}

	body, err := s.src.ReadExact(bmpLen)
	if err != nil {
		return err
	}

	offset := 0
	for offset+4 <= len(body) {
		tlvType := binary.BigEndian.Uint16(body[offset : offset+2])
		tlvLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+tlvLen > len(body) {
			s.logger.Notice("bmp: termination TLV length %d exceeds remaining body (%d)", tlvLen, len(body)-offset)
			break
		}
		value := body[offset : offset+tlvLen]
		offset += tlvLen

		switch tlvType {
		case TermTLVString:
			s.Router.TermData = truncateBytes(value, maxFreeformLen)
		case TermTLVReason:
			if len(value) < 2 {
				s.logger.Notice("bmp: termination reason TLV too short (%d bytes)", len(value))
				continue
			}
			code := binary.BigEndian.Uint16(value[0:2])
			s.Router.TermReasonCode = code
			s.Router.TermReasonText = terminationReasonText(code)
		default:
			s.logger.Notice("bmp: unrecognized termination TLV type %d (%d bytes discarded)", tlvType, tlvLen)
		}
	}

	return s.sink.UpdateRouter(s.Router)
}

func terminationReasonText(code uint16) string {
	switch code {
	case TermReasonUnspecified:
		return "Unspecified termination reason"
	case TermReasonAdminClose:
		return "Remote session administratively closed"
	case TermReasonOutOfResources:
		return "Remote system out of resources"
	case TermReasonRedundant:
		return "Remote system, redundant peering"
	default:
		return fmt.Sprintf("Unknown %d termination reason, which is not part of draft.", code)
	}
}
