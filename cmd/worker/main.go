// main.go
//
// The runtime forms data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-formsdb.
// jam-build-formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"log"

	"github.com/hibiken/asynq"
	"github.com/localnerve/jam-build-formsdb/internal/config"
	"github.com/localnerve/jam-build-formsdb/internal/database"
	"github.com/localnerve/jam-build-formsdb/internal/jobs"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{Concurrency: cfg.WorkerConcurrency},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeReindexForm, jobs.NewReindexFormHandler(db))

	log.Printf("Starting worker, concurrency %d", cfg.WorkerConcurrency)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker stopped: %v", err)
	}
}
