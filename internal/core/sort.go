package core

import (
	"cmp"
	"slices"
)

// Sort orders rs in place by course level, then course title, then last
// name, using plain byte-wise string comparison. The sort is stable, so
// records with equal keys keep their extraction order and sorting a sorted
// set changes nothing.
func Sort(rs ResultSet) {
	slices.SortStableFunc(rs, compareRecords)
}

// IsSorted reports whether rs is already in Sort order.
func IsSorted(rs ResultSet) bool {
	return slices.IsSortedFunc(rs, compareRecords)
}

func compareRecords(a, b StudentRecord) int {
	return cmp.Or(
		cmp.Compare(a.CourseLevel, b.CourseLevel),
		cmp.Compare(a.CourseTitle, b.CourseTitle),
		cmp.Compare(a.LastName, b.LastName),
	)
}
