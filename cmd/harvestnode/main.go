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

// Command harvestnode runs a single permissioned agricultural
// supply-chain node (spec.md). Configuration is read from the environment
// and an optional TOML file (node.LoadConfig); this binary's flags only
// cover process-level concerns.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/agrichain/harvestnode/log"
	"github.com/agrichain/harvestnode/node"
)

var logger = log.NewModuleLogger(log.ModuleNode)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "harvestnode"
	app.Usage = "permissioned agricultural supply-chain blockchain node"
	app.Action = run
	return app
}

func run(ctx *cli.Context) error {
	cfg, err := node.LoadConfig()
	if err != nil {
		return err
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return err
	}
	logger.Info("harvestnode started", "appPort", cfg.AppPort, "ordererNode", cfg.IsOrdererNode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	n.Stop()
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
