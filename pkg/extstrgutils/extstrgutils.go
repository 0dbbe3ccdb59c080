package extstrgutils

import (
	"slices"
	"strings"
)

// SplitMultiValueParam splits a string into multiple values using space, comma or semicolon as separator
func SplitMultiValueParam(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
}

// SplitUnique like SplitMultiValueParam, but every value only once, in order of first appearance
func SplitUnique(value string) []string {
	res := make([]string, 0)
	for _, v := range SplitMultiValueParam(value) {
		if !slices.Contains(res, v) {
			res = append(res, v)
		}
	}
	return res
}
