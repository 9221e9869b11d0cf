package util

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// PointerToString dereferences pointer and returns a string. If the
// pointer is nil, this returns an empty string.
func PointerToString(pointer *string) string {
	if pointer == nil {
		return ""
	}
	return *pointer
}

// PointerToInt64 dereferences pointer and returns an int64. If the
// pointer is nil, this returns zero.
func PointerToInt64(pointer *int64) int64 {
	if pointer == nil {
		return int64(0)
	}
	return *pointer
}
