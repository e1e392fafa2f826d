package enums

import "fmt"

func parse[T ~string](valid []T, label, value string) (T, error) {
	for _, candidate := range valid {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", label, value)
}
