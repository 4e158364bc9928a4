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
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/agrichain/harvestnode/blockchain/types"
)

// startAPI serves the local request API of spec.md §6 over fasthttp,
// following the teacher's fasthttpadaptor.NewFastHTTPHandler wrapping of a
// plain net/http.Handler (networks/rpc/http_test.go).
func (n *Node) startAPI() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", n.handleSubmitTransaction)
	mux.HandleFunc("/mempool", n.handleMempoolQuery)
	mux.HandleFunc("/blocks/", n.handleBlockQuery)

	srv := &fasthttp.Server{
		Handler: fasthttpadaptor.NewFastHTTPHandler(mux),
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", n.cfg.APIPort))
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			logger.Error("api listener stopped", "err", err)
		}
	}()
	return nil
}

type submitResponse struct {
	Accepted bool `json:"accepted"`
}

// handleSubmitTransaction is the HTTP face of submitTransaction, the single
// function spec.md §6 names as the API surface the core consumes.
func (n *Node) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var tx types.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	accepted := n.submitTransaction(&tx)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(submitResponse{Accepted: accepted})
}

// handleMempoolQuery lets a client observe the pending set (spec.md §1
// "observe the transaction mempool").
func (n *Node) handleMempoolQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(n.pool.Pending())
}

// handleBlockQuery serves GET /blocks/<number>.
func (n *Node) handleBlockQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var number uint64
	if _, err := fmt.Sscanf(r.URL.Path, "/blocks/%d", &number); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	block, err := n.state.GetBlockByNumber(number)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if block == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(block)
}
