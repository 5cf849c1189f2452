// Command bmp-replay feeds a captured raw BMP byte stream (as written to
// a file by e.g. `tcpdump -w` payload extraction, or the collector's own
// history audit trail) through the decoder and prints every message it
// produces. It is a debugging aid, not a component of the running
// service.
package main

import (
	"fmt"
	"os"

	"github.com/route-beacon/bmp-collector/internal/bgp"
	"github.com/route-beacon/bmp-collector/internal/bmp"
)

type stdoutLogger struct{}

func (stdoutLogger) Debug(format string, args ...any)  { fmt.Printf("DEBUG  "+format+"\n", args...) }
func (stdoutLogger) Info(format string, args ...any)   { fmt.Printf("INFO   "+format+"\n", args...) }
func (stdoutLogger) Notice(format string, args ...any) { fmt.Printf("NOTICE "+format+"\n", args...) }
func (stdoutLogger) Err(format string, args ...any)    { fmt.Printf("ERR    "+format+"\n", args...) }

// printSink implements bmp.StorageSink by printing every record instead
// of persisting it.
type printSink struct{}

func (printSink) UpdateRouter(r *bmp.RouterRecord) error {
	fmt.Printf("  router: addr=%s sys_name=%q sys_descr=%q term_reason=%d %q\n",
		r.SourceAddr, r.SysName, r.SysDescr, r.TermReasonCode, r.TermReasonText)
	return nil
}

func (printSink) IdentifyPeer(p *bmp.PeerRecord) error {
	p.HashID = p.Addr + "|" + p.RD
	return nil
}

func (printSink) AddPeerUpEvent(e *bmp.PeerUpEvent) error {
	fmt.Printf("  peer up: peer=%s local=%s:%d remote_port=%d\n", e.PeerHashID, e.LocalIP, e.LocalPort, e.RemotePort)
	return nil
}

func (printSink) AddStatsReport(r *bmp.StatsReport) error {
	fmt.Printf("  stats: peer=%s rejected=%d dup_prefix=%d dup_withdraw=%d adj_rib_in=%d loc_rib=%d\n",
		r.PeerHashID, r.PrefixesRejected, r.DuplicatePrefixes, r.DuplicateWithdraws, r.RoutesAdjRIBIn, r.RoutesLocRIB)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <raw-bmp-file>\n", os.Args[0])
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	router := &bmp.RouterRecord{SourceAddr: os.Args[1]}
	src := bmp.NewByteSource(f)
	session := bmp.NewSession(src, router, printSink{}, stdoutLogger{})

	msgNum := 0
	err = session.RunUntilClosed(func(outcome bmp.MessageOutcome) {
		msgNum++
		fmt.Printf("=== message %d: type=%d %s ===\n", msgNum, outcome.MsgType, bmpMsgName(outcome.MsgType))

		if outcome.RemainingLen > 0 {
			body, err := session.Source().ReadExact(outcome.RemainingLen)
			if err != nil {
				fmt.Printf("  reading body: %v\n", err)
				return
			}
			fmt.Printf("  body: %d bytes\n", len(body))

			if outcome.MsgType == bmp.MsgTypeRouteMonitoring {
				analyzeRouteMonitoring(body)
			}
		} else if outcome.RemainingLen < 0 {
			fmt.Printf("  v1/v2 message, self-delimited body left unparsed\n")
		}
	})
	if err != nil {
		fmt.Printf("session ended: %v\n", err)
	}

	fmt.Printf("Total messages: %d\n", msgNum)
}

func analyzeRouteMonitoring(body []byte) {
	events, err := bgp.ParseUpdate(body, false)
	if err != nil {
		fmt.Printf("  ParseUpdate error: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Printf("  EOR (AFI=%d)\n", bgp.DetectEORAFI(body))
		return
	}
	fmt.Printf("  routes: %d\n", len(events))
	for i, ev := range events {
		if i < 5 || i == len(events)-1 {
			fmt.Printf("    [%d] AFI=%d %s %s nexthop=%s as=%s pathID=%d\n",
				i, ev.AFI, ev.Action, ev.Prefix, ev.Nexthop, ev.ASPath, ev.PathID)
		} else if i == 5 {
			fmt.Printf("    ... (%d more) ...\n", len(events)-6)
		}
	}
}

func bmpMsgName(t uint8) string {
	switch t {
	case bmp.MsgTypeRouteMonitoring:
		return "RouteMonitoring"
	case bmp.MsgTypeStatsReport:
		return "StatisticsReport"
	case bmp.MsgTypePeerDown:
		return "PeerDown"
	case bmp.MsgTypePeerUp:
		return "PeerUp"
	case bmp.MsgTypeInitiation:
		return "Initiation"
	case bmp.MsgTypeTermination:
		return "Termination"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}
