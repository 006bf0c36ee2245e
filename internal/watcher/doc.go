// Package watcher feeds a stream of transactions into a running
// affinity.Updater.
//
// Producers append one NDJSON record per transaction to a stream file. The
// Feed tails that file from a persisted byte offset, stores the new line items,
// ingests each transaction into the updater and reports the refreshed
// statistics through a callback.
//
// Key features:
//   - fsnotify write events with a polling ticker as backup
//   - Crash-safe offset tracking (temp file + rename pattern)
//   - Batched SQLite inserts (single transaction per pass)
//   - Partial trailing lines are left for the next pass
//   - Malformed records are logged and skipped
//   - Transaction ids that are already stored are skipped
//
// Example usage:
//
//	st, err := store.New("~/.basketlift/basketlift.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	items, err := st.ListLineItems()
//	if err != nil {
//		log.Fatal(err)
//	}
//	up := affinity.NewUpdater(affinity.DefaultThresholds())
//	if err := up.Initialize(items); err != nil {
//		log.Fatal(err)
//	}
//
//	feed, err := watcher.New(st, up, watcher.Config{
//		Path: "transactions.ndjson",
//		OnUpdate: func(u watcher.Update) {
//			fmt.Println(u.Transactions, "new transactions")
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = feed.Run(ctx)
package watcher
