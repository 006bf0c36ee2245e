// Package affinity computes pairwise product-affinity rules from baskets.
//
// For items A and B over N transactions:
//
//	support(A)        = baskets containing A / N
//	support(A,B)      = baskets containing both / N
//	confidence(A → B) = support(A,B) / support(A)
//	lift(A → B)       = confidence(A → B) / support(B)
//
// Every ratio with a zero denominator is 0.
//
// Two entry points share the same counting and filtering code:
//
//   - Analyzer runs a one-shot analysis over a complete dataset.
//   - Updater keeps cumulative counts as transactions stream in and
//     recomputes rules from those counts on demand.
//
// Example:
//
//	u := affinity.NewUpdater(affinity.DefaultThresholds())
//	if err := u.Initialize(history); err != nil {
//		return err
//	}
//	if err := u.AddBatch(newItems); err != nil {
//		return err
//	}
//	for _, r := range u.TopAffinities(10) {
//		fmt.Printf("%s lift=%.2f\n", r.Direction(), r.Lift)
//	}
package affinity
