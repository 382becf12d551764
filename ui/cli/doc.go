// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the markbook command-line interface using Cobra.
// Every command loads configuration, opens the store from it and applies
// pending migrations before running. Commands stay thin and delegate all
// persistence to the db.Store gateway.
package cli
