package frame

import (
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Aggregations that pick one winner among equal counts choose the smallest
// candidate: numeric order for number columns, byte order for text.

// ValueCount is one entry of ValueCounts
type ValueCount struct {
	Value string
	Count int
}

// GroupSize is the row count of one distinct key combination
type GroupSize struct {
	Values []string
	Count  int
}

type tally struct {
	value string
	first int
	count int
}

// countValues counts the distinct non-null values of s, most frequent first
func countValues(s series.Series) []*tally {
	byValue := make(map[string]*tally)
	order := make([]*tally, 0)
	for i, v := range Format(s) {
		if s.Elem(i).IsNA() {
			continue
		}
		t, ok := byValue[v]
		if !ok {
			t = &tally{value: v, first: i}
			byValue[v] = t
			order = append(order, t)
		}
		t.count++
	}

	sort.SliceStable(order, func(a, b int) bool {
		if order[a].count != order[b].count {
			return order[a].count > order[b].count
		}
		return less(s.Type(), order[a].value, order[b].value)
	})
	return order
}

// ModeIndex returns a row holding the most frequent non-null value.
// ok is false when the series has no values.
func ModeIndex(s series.Series) (row int, ok bool) {
	counts := countValues(s)
	if len(counts) == 0 {
		return -1, false
	}
	return counts[0].first, true
}

// ValueCounts counts each distinct non-null value, most frequent first
func ValueCounts(s series.Series) []ValueCount {
	counts := countValues(s)
	result := make([]ValueCount, len(counts))
	for i, t := range counts {
		result[i] = ValueCount{Value: t.value, Count: t.count}
	}
	return result
}

// GroupSizes counts rows per distinct combination of the named columns,
// largest group first. Rows with a null key are skipped.
func GroupSizes(df dataframe.DataFrame, names ...string) ([]GroupSize, error) {
	types := make([]series.Type, len(names))
	for i, name := range names {
		column, err := Column(df, name)
		if err != nil {
			return nil, err
		}
		types[i] = column.Type()
	}

	// gota cannot key a group on a null, so those rows are dropped first
	keys := df.Select(names)
	rows := make([]int, 0, keys.Nrow())
scan:
	for i := 0; i < keys.Nrow(); i++ {
		for _, name := range names {
			if keys.Col(name).Elem(i).IsNA() {
				continue scan
			}
		}
		rows = append(rows, i)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	groups := keys.Subset(rows).GroupBy(names...)
	if groups.Err != nil {
		return nil, groups.Err
	}

	result := make([]GroupSize, 0)
	for _, group := range groups.GetGroups() {
		values := make([]string, len(names))
		for j, name := range names {
			values[j] = formatElement(group.Col(name).Elem(0), types[j])
		}
		result = append(result, GroupSize{Values: values, Count: group.Nrow()})
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].Count != result[b].Count {
			return result[a].Count > result[b].Count
		}
		for j, t := range types {
			va, vb := result[a].Values[j], result[b].Values[j]
			if va != vb {
				return less(t, va, vb)
			}
		}
		return false
	})
	return result, nil
}

// NonNull returns the non-null values of s
func NonNull(s series.Series) series.Series {
	rows := make([]int, 0, s.Len())
	for i, na := range s.IsNaN() {
		if !na {
			rows = append(rows, i)
		}
	}
	return s.Subset(rows)
}

func less(t series.Type, a, b string) bool {
	if t == series.Float || t == series.Int {
		x, errA := strconv.ParseFloat(a, 64)
		y, errB := strconv.ParseFloat(b, 64)
		if errA == nil && errB == nil {
			return x < y
		}
	}
	return a < b
}
