// Package storage persists decoded BMP records to Postgres. It is the
// bmp.StorageSink implementation wired into the collector; nothing in
// internal/bmp imports it.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/bmp-collector/internal/bmp"
	"github.com/route-beacon/bmp-collector/internal/metrics"
)

type Sink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewSink(pool *pgxpool.Pool, logger *zap.Logger) *Sink {
	return &Sink{pool: pool, logger: logger}
}

// UpdateRouter upserts router metadata. Called after every Initiation TLV
// and once after Termination, so it must tolerate partially-populated
// RouterRecords (an Initiation-in-progress router has no term fields yet).
func (s *Sink) UpdateRouter(router *bmp.RouterRecord) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO routers (source_addr, sys_name, sys_descr, initiate_data, term_data,
			term_reason_code, term_reason_text, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (source_addr) DO UPDATE SET
			sys_name         = COALESCE(NULLIF(EXCLUDED.sys_name, ''), routers.sys_name),
			sys_descr        = COALESCE(NULLIF(EXCLUDED.sys_descr, ''), routers.sys_descr),
			initiate_data    = COALESCE(EXCLUDED.initiate_data, routers.initiate_data),
			term_data        = COALESCE(EXCLUDED.term_data, routers.term_data),
			term_reason_code = CASE WHEN EXCLUDED.term_reason_text <> '' THEN EXCLUDED.term_reason_code ELSE routers.term_reason_code END,
			term_reason_text = COALESCE(NULLIF(EXCLUDED.term_reason_text, ''), routers.term_reason_text),
			last_seen        = now()`,
		router.SourceAddr, router.SysName, router.SysDescr,
		nullableBytes(router.InitiateData), nullableBytes(router.TermData),
		router.TermReasonCode, router.TermReasonText,
	)
	if err != nil {
		return fmt.Errorf("upsert router %s: %w", router.SourceAddr, err)
	}

	metrics.DBWriteDuration.WithLabelValues("update_router").Observe(time.Since(start).Seconds())
	metrics.DBRowsAffectedTotal.WithLabelValues("routers", "upsert").Inc()
	return nil
}

// IdentifyPeer derives a stable HashID from the peer's address and route
// distinguisher and upserts the peer row, refreshing last_seen.
func (s *Sink) IdentifyPeer(peer *bmp.PeerRecord) error {
	peer.HashID = peerHashID(peer.Addr, peer.RD)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO peers (hash_id, addr, is_ipv4, peer_as, bgp_id, rd, is_l3vpn, is_pre_policy, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (hash_id) DO UPDATE SET
			bgp_id        = EXCLUDED.bgp_id,
			is_l3vpn      = EXCLUDED.is_l3vpn,
			is_pre_policy = EXCLUDED.is_pre_policy,
			last_seen     = now()`,
		peer.HashID, peer.Addr, peer.IsIPv4, peer.AS, peer.BGPID, peer.RD, peer.IsL3VPN, peer.IsPrePolicy,
	)
	if err != nil {
		return fmt.Errorf("upsert peer %s: %w", peer.Addr, err)
	}

	metrics.DBWriteDuration.WithLabelValues("identify_peer").Observe(time.Since(start).Seconds())
	metrics.DBRowsAffectedTotal.WithLabelValues("peers", "upsert").Inc()
	return nil
}

// AddPeerUpEvent inserts one Peer Up event row. Events are append-only:
// a router can legitimately send the same peer up twice (flap), and the
// history is meaningful.
func (s *Sink) AddPeerUpEvent(event *bmp.PeerUpEvent) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO peer_up_events (peer_hash_id, ts, local_ip, local_port, remote_port)
		VALUES ($1, to_timestamp($2), $3, $4, $5)`,
		event.PeerHashID, event.Timestamp, event.LocalIP, event.LocalPort, event.RemotePort,
	)
	if err != nil {
		return fmt.Errorf("insert peer-up event for %s: %w", event.PeerHashID, err)
	}

	metrics.DBWriteDuration.WithLabelValues("add_peer_up_event").Observe(time.Since(start).Seconds())
	metrics.DBRowsAffectedTotal.WithLabelValues("peer_up_events", "insert").Inc()
	return nil
}

// AddStatsReport inserts one Statistics Report snapshot.
func (s *Sink) AddStatsReport(report *bmp.StatsReport) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO stats_reports (peer_hash_id, ts, prefixes_rejected, duplicate_prefixes,
			duplicate_withdraws, invalid_cluster_list, as_path_loop, originator_id,
			as_confed_loop, routes_adj_rib_in, routes_loc_rib)
		VALUES ($1, now(), $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.PeerHashID, report.PrefixesRejected, report.DuplicatePrefixes,
		report.DuplicateWithdraws, report.InvalidClusterList, report.ASPathLoop,
		report.OriginatorID, report.ASConfedLoop, report.RoutesAdjRIBIn, report.RoutesLocRIB,
	)
	if err != nil {
		return fmt.Errorf("insert stats report for %s: %w", report.PeerHashID, err)
	}

	metrics.DBWriteDuration.WithLabelValues("add_stats_report").Observe(time.Since(start).Seconds())
	metrics.DBRowsAffectedTotal.WithLabelValues("stats_reports", "insert").Inc()
	return nil
}

func peerHashID(addr, rd string) string {
	h := sha256.Sum256([]byte(addr + "|" + rd))
	return hex.EncodeToString(h[:])[:32]
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
