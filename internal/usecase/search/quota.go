package search

import (
	"math"
	"sort"

	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
)

// Share is the target proportion of merged output reserved for one partition.
type Share struct {
	Partition  pet.Partition
	Proportion float64
}

// RankedList is the candidate list fetched from one partition.
type RankedList struct {
	Partition pet.Partition
	Items     []result.ScoredItem
}

// MergeQuota combines per-partition candidate lists into at most n items honoring the
// shares. Proportions are normalized over the shares that have a list; lists without a
// share are ignored. Output groups partitions in share order, each slice sorted by score
// descending with ties broken by id.
func MergeQuota(lists []RankedList, shares []Share, n int) []result.ScoredItem {
	if n <= 0 {
		return nil
	}

	active := activeShares(lists, shares)
	if len(active) == 0 {
		return nil
	}

	pools := dedup(lists, active)
	avail := make([]int, len(active))
	for i, sh := range active {
		avail[i] = len(pools[sh.Partition])
	}

	alloc := allocate(proportions(active), avail, n)

	out := make([]result.ScoredItem, 0, n)
	for i, sh := range active {
		out = append(out, pools[sh.Partition][:alloc[i]]...)
	}
	return out
}

// activeShares keeps the shares whose partition supplied a list, in share order.
func activeShares(lists []RankedList, shares []Share) []Share {
	supplied := make(map[pet.Partition]bool, len(lists))
	for _, l := range lists {
		supplied[l.Partition] = true
	}
	seen := make(map[pet.Partition]bool, len(shares))
	active := make([]Share, 0, len(shares))
	for _, sh := range shares {
		if supplied[sh.Partition] && !seen[sh.Partition] && sh.Proportion >= 0 {
			seen[sh.Partition] = true
			active = append(active, sh)
		}
	}
	return active
}

func proportions(active []Share) []float64 {
	var sum float64
	for _, sh := range active {
		sum += sh.Proportion
	}
	p := make([]float64, len(active))
	for i, sh := range active {
		if sum > 0 {
			p[i] = sh.Proportion / sum
		} else {
			p[i] = 1 / float64(len(active))
		}
	}
	return p
}

// dedup assigns every id to the partition where it scored highest (earlier share wins
// ties) and returns each partition's pool sorted by score desc, id asc.
func dedup(lists []RankedList, active []Share) map[pet.Partition][]result.ScoredItem {
	order := make(map[pet.Partition]int, len(active))
	for i, sh := range active {
		order[sh.Partition] = i
	}

	type entry struct {
		item      result.ScoredItem
		partition pet.Partition
	}
	best := make(map[string]entry)
	for _, l := range lists {
		rank, ok := order[l.Partition]
		if !ok {
			continue
		}
		for _, it := range l.Items {
			cur, seen := best[it.Pet.ID]
			if !seen || it.Score > cur.item.Score ||
				(it.Score == cur.item.Score && rank < order[cur.partition]) {
				best[it.Pet.ID] = entry{item: it, partition: l.Partition}
			}
		}
	}

	pools := make(map[pet.Partition][]result.ScoredItem, len(active))
	for _, sh := range active {
		pools[sh.Partition] = []result.ScoredItem{}
	}
	for _, e := range best {
		pools[e.partition] = append(pools[e.partition], e.item)
	}
	for _, items := range pools {
		sortRanked(items)
	}
	return pools
}

func sortRanked(items []result.ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Pet.ID < items[j].Pet.ID
	})
}

// allocate returns per-partition slot counts. Counts start at round(p*n) adjusted to sum
// to n, are capped by availability, and any shortfall is handed to partitions with
// surplus in proportion to that surplus. The total is min(n, sum(avail)).
func allocate(p []float64, avail []int, n int) []int {
	k := len(p)
	quota := make([]int, k)
	sum := 0
	for i := range p {
		quota[i] = int(math.Round(p[i] * float64(n)))
		sum += quota[i]
	}

	for sum < n {
		quota[pick(k, func(i int) (int, bool) { return avail[i] - quota[i], true })]++
		sum++
	}
	for sum > n {
		quota[pick(k, func(i int) (int, bool) { return quota[i] - avail[i], quota[i] > 0 })]--
		sum--
	}

	alloc := make([]int, k)
	placed := 0
	for i := range quota {
		alloc[i] = min(quota[i], avail[i])
		placed += alloc[i]
	}

	for shortfall := n - placed; shortfall > 0; {
		surplus := make([]int, k)
		total := 0
		for i := range alloc {
			surplus[i] = avail[i] - alloc[i]
			total += surplus[i]
		}
		if total == 0 {
			break
		}

		given := 0
		for i := range alloc {
			extra := min(shortfall*surplus[i]/total, surplus[i])
			alloc[i] += extra
			given += extra
		}
		if given == 0 {
			alloc[pick(k, func(i int) (int, bool) { return surplus[i], surplus[i] > 0 })]++
			given = 1
		}
		shortfall -= given
	}

	return alloc
}

// pick returns the eligible index with the largest key, preferring the earliest on ties.
func pick(k int, key func(i int) (int, bool)) int {
	best, bestKey := -1, 0
	for i := 0; i < k; i++ {
		v, ok := key(i)
		if !ok {
			continue
		}
		if best < 0 || v > bestKey {
			best, bestKey = i, v
		}
	}
	return best
}
