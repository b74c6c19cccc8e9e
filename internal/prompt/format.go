package prompt

import "strconv"

func itoa(v int) string {
	return strconv.Itoa(v)
}

// ftoa renders a personality/mental-state real value with enough precision
// to round-trip the 6-decimal quantization the fingerprinter applies,
// without trailing zeros cluttering the assembled text.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
