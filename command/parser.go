package command

import "strings"

const (
	prefixSummon  = "SUMMON "
	prefixConjure = "CONJURE "
	prefixDispel  = "DISPEL "
	prefixSendTo  = "SEND TO "
	prefixIncant  = "INCANT "
	separatorAs   = " AS "
)

// Parse turns one input line into a Command
func Parse(input string) Command {
	input = strings.TrimSpace(input)

	switch {
	case hasPrefixFold(input, prefixSummon):
		rest := strings.TrimSpace(input[len(prefixSummon):])
		idx := indexFold(rest, separatorAs)
		if idx < 0 {
			return Unknown{}
		}
		key := strings.TrimSpace(rest[:idx])
		value := strings.Trim(strings.TrimSpace(rest[idx+len(separatorAs):]), `"`)
		if key == "" {
			return Unknown{}
		}
		return Summon{Key: key, Value: value}

	case hasPrefixFold(input, prefixConjure):
		return Conjure{Key: strings.TrimSpace(input[len(prefixConjure):])}

	case hasPrefixFold(input, prefixDispel):
		return Dispel{Key: strings.TrimSpace(input[len(prefixDispel):])}

	case hasPrefixFold(input, prefixSendTo):
		rest := strings.TrimSpace(input[len(prefixSendTo):])
		target, value, _ := strings.Cut(rest, " ")
		if target == "" {
			return Unknown{}
		}
		return SendTo{Target: target, Value: strings.TrimSpace(value)}

	case hasPrefixFold(input, prefixIncant):
		return Incant{Script: strings.TrimSpace(input[len(prefixIncant):])}
	}

	return Unknown{}
}

// hasPrefixFold is strings.HasPrefix ignoring ASCII case
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// indexFold is strings.Index ignoring ASCII case
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
