package entity

import "time"

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// SortPair returns the two user ids in lexicographic order.
// A conversation row always stores the lower id first so the unordered
// pair maps to exactly one row.
func SortPair(userA, userB string) (low, high string) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}
