// Copyright 2024-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var pool PgxIface

// openTransactions is shared by concurrent backtest and scoring work, so
// every access holds openTransactionsMu
var openTransactions map[string]string
var openTransactionsMu sync.Mutex

// SetPool overrides the connection pool; tests use this with pgxmock
func SetPool(myPool PgxIface) {
	openTransactionsMu.Lock()
	openTransactions = make(map[string]string)
	openTransactionsMu.Unlock()
	pool = myPool
}

func untrackTransaction(id string) {
	openTransactionsMu.Lock()
	delete(openTransactions, id)
	openTransactionsMu.Unlock()
}

func Connect(ctx context.Context) error {
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// LogOpenTransactions writes an INFO log for each open transaction
func LogOpenTransactions() {
	openTransactionsMu.Lock()
	defer openTransactionsMu.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxId", k).Str("Caller", v).Msg("open transaction")
	}
}

// Trx creates a new transaction against the pool. Transactions are tracked
// in the openTransactions map until commit or rollback so that leaked
// transactions can be reported.
func Trx(ctx context.Context) (*FsDbTx, error) {
	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	// record transactions in openTransaction log
	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()
	openTransactionsMu.Lock()
	openTransactions[trxID] = caller
	openTransactionsMu.Unlock()

	return &FsDbTx{
		id: trxID,
		tx: trx,
	}, nil
}
