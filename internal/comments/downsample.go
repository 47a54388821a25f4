package comments

import (
	"math"

	"danmakuproxy/internal/domain"
)

const binarySearchIterations = 20

// Downsample implements spec/4.5 step 4 exactly: group into 1-second
// buckets, binary-search a floating threshold T so that
// sum(min(bucketSize, T)) approximates limit, then walk buckets in time
// order carrying an error-diffusion accumulator to decide how many items
// each bucket contributes, picking a uniform stride within the bucket.
// Assumes list is already time-sorted (true after GroupByMinute).
func Downsample(list []domain.Danmaku, limit int) []domain.Danmaku {
	if limit <= 0 || len(list) <= limit {
		return list
	}

	buckets, order := bucketBySecond(list)
	caps := make([]int, len(order))
	maxCap := 0
	for i, sec := range order {
		caps[i] = len(buckets[sec])
		if caps[i] > maxCap {
			maxCap = caps[i]
		}
	}

	threshold := searchThreshold(caps, maxCap, limit)

	out := make([]domain.Danmaku, 0, limit)
	accumulator := 0.5
	for i, sec := range order {
		capSize := caps[i]
		if capSize == 0 {
			accumulator = 0
			continue
		}
		raw := math.Min(float64(capSize), threshold) + accumulator
		take := int(math.Floor(raw))
		accumulator = raw - float64(take)

		if take > capSize {
			take = capSize
		}
		if take <= 0 {
			continue
		}

		bucket := buckets[sec]
		step := float64(capSize) / float64(take)
		for j := 0; j < take; j++ {
			idx := int(math.Floor(float64(j) * step))
			if idx >= capSize {
				idx = capSize - 1
			}
			out = append(out, bucket[idx])
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func bucketBySecond(list []domain.Danmaku) (map[int64][]domain.Danmaku, []int64) {
	buckets := make(map[int64][]domain.Danmaku)
	var order []int64
	for _, d := range list {
		sec := int64(math.Floor(d.T))
		if _, ok := buckets[sec]; !ok {
			order = append(order, sec)
		}
		buckets[sec] = append(buckets[sec], d)
	}
	return buckets, order
}

// searchThreshold finds a floating T in [0, maxCap] such that
// sum(min(cap[i], T)) is as close to limit as 20 bisection iterations get.
func searchThreshold(caps []int, maxCap, limit int) float64 {
	lo, hi := 0.0, float64(maxCap)
	for iter := 0; iter < binarySearchIterations; iter++ {
		mid := (lo + hi) / 2
		total := 0.0
		for _, c := range caps {
			total += math.Min(float64(c), mid)
		}
		if total > float64(limit) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}
