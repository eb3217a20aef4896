package exports

import "strconv"

func itoa(v int) string {
	return strconv.Itoa(v)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
