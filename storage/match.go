package storage

// Match reports whether key matches a glob pattern where '*' matches any run
// of characters and '?' matches exactly one character (one UTF-8 rune).
// "*" never matches the empty key.
func Match(key, pattern string) bool {
	if pattern == "" {
		return key == ""
	}
	if pattern == "*" {
		return key != ""
	}
	return matchFrom([]rune(key), []rune(pattern), 0, 0, make(map[[2]int]bool))
}

func matchFrom(key, pattern []rune, ki, pi int, memo map[[2]int]bool) bool {
	state := [2]int{ki, pi}
	if result, seen := memo[state]; seen {
		return result
	}

	var result bool
	switch {
	case pi == len(pattern):
		result = ki == len(key)
	case pattern[pi] == '*':
		result = matchFrom(key, pattern, ki, pi+1, memo) ||
			(ki < len(key) && matchFrom(key, pattern, ki+1, pi, memo))
	case ki == len(key):
		result = false
	case pattern[pi] == '?' || pattern[pi] == key[ki]:
		result = matchFrom(key, pattern, ki+1, pi+1, memo)
	}

	memo[state] = result
	return result
}

// KeysMatching returns the keys of s that match pattern
func KeysMatching(s Store, pattern string) []string {
	matched := make([]string, 0)
	for _, key := range s.Keys() {
		if Match(key, pattern) {
			matched = append(matched, key)
		}
	}
	return matched
}
