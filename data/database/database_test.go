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

package database_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/fundscope/fs-api/data/database"
)

var _ = Describe("Trx", func() {
	var dbPool pgxmock.PgxConnIface

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
	})

	It("should commit and roll back wrapped transactions", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectCommit()
		dbPool.ExpectBegin()
		dbPool.ExpectRollback()

		trx, err := database.Trx(context.Background())
		Expect(err).To(BeNil())
		Expect(trx.Commit(context.Background())).To(Succeed())

		trx, err = database.Trx(context.Background())
		Expect(err).To(BeNil())
		Expect(trx.Rollback(context.Background())).To(Succeed())

		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("should track transactions from concurrent goroutines", func() {
		const workers = 16
		dbPool.MatchExpectationsInOrder(false)
		for i := 0; i < workers; i++ {
			dbPool.ExpectBegin()
			dbPool.ExpectCommit()
		}

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				trx, err := database.Trx(context.Background())
				Expect(err).To(BeNil())
				Expect(trx.Commit(context.Background())).To(Succeed())
			}()
		}
		wg.Wait()

		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})
})
