// Package id formats and parses voucher numbers and hierarchical account codes.
package id

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeSeparator joins the segments of an account code.
const CodeSeparator = "."

// FirstVoucherNumber is the number given to the first voucher of a book.
const FirstVoucherNumber = "1"

// NextVoucherNumber returns last+1. An empty last means the book is new.
// Legacy numbers such as "PV-0041" increment their trailing digits and
// lose the prefix: "PV-0041" -> "42".
func NextVoucherNumber(last string) (string, error) {
	if last == "" {
		return FirstVoucherNumber, nil
	}
	n, err := ParseVoucherNumber(last)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n+1, 10), nil
}

// ParseVoucherNumber extracts the trailing integer of a voucher number.
func ParseVoucherNumber(number string) (int64, error) {
	s := strings.TrimSpace(number)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, fmt.Errorf("voucher number %q has no numeric part", number)
	}
	n, err := strconv.ParseInt(s[i:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid voucher number %q: %w", number, err)
	}
	return n, nil
}

// JoinCode returns "parent.n", or "n" for a root.
func JoinCode(parent string, n int) string {
	if parent == "" {
		return strconv.Itoa(n)
	}
	return parent + CodeSeparator + strconv.Itoa(n)
}

// ParentCode strips the last segment: "1.2.3" -> "1.2", "1" -> "".
func ParentCode(code string) string {
	i := strings.LastIndex(code, CodeSeparator)
	if i < 0 {
		return ""
	}
	return code[:i]
}

// Depth counts segments: "1" -> 1, "1.2.3" -> 3.
func Depth(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, CodeSeparator) + 1
}

// ChildSegment returns the trailing number of code when code is a direct
// child of parent. Deeper descendants and non-numeric segments report false.
func ChildSegment(parent, code string) (int, bool) {
	rest := code
	if parent != "" {
		prefix := parent + CodeSeparator
		if !strings.HasPrefix(code, prefix) {
			return 0, false
		}
		rest = code[len(prefix):]
	}
	if rest == "" || strings.Contains(rest, CodeSeparator) {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Less orders codes segment by segment, numerically where both segments
// are numbers: "1.2" < "1.10" < "2".
func Less(a, b string) bool {
	as := strings.Split(a, CodeSeparator)
	bs := strings.Split(b, CodeSeparator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aErr := strconv.Atoi(as[i])
		bn, bErr := strconv.Atoi(bs[i])
		if aErr == nil && bErr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
