// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/rcrowley/go-metrics"
)

// hashRateMeter mirrors the name consensus/pow registers its hashesPerSecond
// meter under, so the exporter can surface it without pow exporting the
// meter itself.
const hashRateMeter = "consensus/pow/hashrate"

// startMetrics registers gauges for every SPEC_FULL.md observability
// signal and serves them on APIPort+1, following the teacher's habit
// (cmd/kcn/main.go) of bridging rcrowley/go-metrics into a Prometheus
// exposition endpoint via promhttp, minus the hand-rolled bridge package the
// teacher imports from its own module tree.
func (n *Node) startMetrics() {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "harvestnode_mempool_size", Help: "Pending transactions awaiting inclusion."},
		func() float64 { return float64(n.pool.Len()) },
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "harvestnode_peer_count", Help: "Currently connected P2P peers."},
		func() float64 { return float64(len(n.engine.Peers())) },
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "harvestnode_chain_height", Help: "Number of the latest committed block."},
		func() float64 {
			latest, err := n.state.LatestBlock()
			if err != nil || latest == nil {
				return 0
			}
			return float64(latest.Number)
		},
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "harvestnode_mining_hashrate", Help: "One-minute moving average hash rate of the local mining worker."},
		func() float64 {
			if m := metrics.DefaultRegistry.Get(hashRateMeter); m != nil {
				if meter, ok := m.(metrics.Meter); ok {
					return meter.Rate1()
				}
			}
			return 0
		},
	))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", n.cfg.APIPort+1)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener stopped", "err", err)
		}
	}()
}
