// Copyright 2025 The Opening Explorer Authors
// This file is part of the opening explorer.
//
// The opening explorer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The opening explorer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the opening explorer. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-chi/chi/v5"
	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/k2052/lila-openingexplorer/db"
	"github.com/k2052/lila-openingexplorer/indexer"
)

func main() {
	cfg := struct {
		datadir   string
		httpAddr  string
		dbCache   string
		verbosity int
		opt       indexer.IndexerOpt
	}{}

	cmd := &cobra.Command{
		Use:   "lila-openingexplorer",
		Short: "Personal opening explorer indexer",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(cfg.verbosity), log.StderrHandler))
			logger := log.Root()

			cacheSize, err := datasize.ParseString(cfg.dbCache)
			if err != nil {
				return fmt.Errorf("invalid --db.cache: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			database, err := db.Open(cfg.datadir, int64(cacheSize.Bytes()), logger)
			if err != nil {
				return err
			}
			defer database.Close()

			stub := indexer.Spawn(ctx, database, cfg.opt, logger)

			router := chi.NewRouter()
			router.Put("/index/{user}", handleIndex(stub))
			router.Get("/personal", handlePersonal(database))
			router.Handle("/metrics", promhttp.Handler())

			server := &http.Server{Addr: cfg.httpAddr, Handler: router}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("[http] listening", "addr", cfg.httpAddr)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return server.Shutdown(shutdownCtx)
			})
			err = g.Wait()

			// Runs interrupted here write no status and retry on the
			// next start from the previous watermark.
			stub.Close()
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.datadir, "datadir", "openingexplorer-db", "store directory")
	flags.StringVar(&cfg.httpAddr, "http.addr", "127.0.0.1:9002", "HTTP listen address")
	flags.StringVar(&cfg.dbCache, "db.cache", "512MB", "store block cache size")
	flags.IntVar(&cfg.verbosity, "verbosity", 3, "log verbosity (0=crit .. 5=trace)")
	flags.StringVar(&cfg.opt.Lila, "lila", "https://lichess.org", "upstream base URL")
	flags.StringVar(&cfg.opt.Bearer, "bearer", "", "upstream API token")
	flags.IntVar(&cfg.opt.Indexers, "indexers", 16, "indexer actor count")
	flags.DurationVar(&cfg.opt.Refresh, "refresh", 24*time.Hour, "re-index a known player after this interval")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
