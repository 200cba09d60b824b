package ucd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range 是闭区间 [Min, Max] 的码点范围，JSON 编码为 [min, max]。
type Range struct {
	Min rune
	Max rune
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]rune{r.Min, r.Max})
}

// ValueRanges 汇总某个属性值覆盖的全部码点区间。
type ValueRanges struct {
	Value  string  `json:"value"`
	Ranges []Range `json:"ranges"`
}

// DecodeValues 把 "XXXX[..YYYY] ; v1 v2" 形式的记录转换为每个属性值的码点区间。
// 结果按属性值首次出现的顺序排列，同一属性值的区间排序并合并相邻/重叠部分。
func DecodeValues(rows [][]string) ([]ValueRanges, error) {
	order := []string{}
	byValue := map[string][]Range{}

	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected code point range and value, got %q", i+1, row)
		}
		rng, err := parseRange(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for _, value := range strings.Fields(row[1]) {
			if _, seen := byValue[value]; !seen {
				order = append(order, value)
			}
			byValue[value] = append(byValue[value], rng)
		}
	}

	result := make([]ValueRanges, 0, len(order))
	for _, value := range order {
		result = append(result, ValueRanges{Value: value, Ranges: mergeRanges(byValue[value])})
	}
	return result, nil
}

func parseRange(field string) (Range, error) {
	lo, hi, isRange := strings.Cut(strings.TrimSpace(field), "..")
	first, err := parseCodePoint(lo)
	if err != nil {
		return Range{}, err
	}
	last := first
	if isRange {
		if last, err = parseCodePoint(hi); err != nil {
			return Range{}, err
		}
	}
	if last < first {
		return Range{}, fmt.Errorf("invalid code point range %q", field)
	}
	return Range{Min: first, Max: last}, nil
}

func parseCodePoint(raw string) (rune, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid code point %q", raw)
	}
	if v > 0x10FFFF {
		return 0, fmt.Errorf("code point %q out of range", raw)
	}
	return rune(v), nil
}

func mergeRanges(ranges []Range) []Range {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	merged := sorted[:0]
	for _, r := range sorted {
		if n := len(merged); n > 0 && r.Min <= merged[n-1].Max+1 {
			if r.Max > merged[n-1].Max {
				merged[n-1].Max = r.Max
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
