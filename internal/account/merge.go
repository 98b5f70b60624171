package account

import "strings"

// Field pairs an optional incoming value with the setter for the matching
// field on T.
type Field[T any] struct {
	Value *string
	Set   func(*T, string)
}

// Merge copies every present, non-blank value onto target after trimming.
// Absent or blank values leave the target untouched. It returns the number
// of fields written.
func Merge[T any](target *T, fields ...Field[T]) int {
	n := 0
	for _, f := range fields {
		v, ok := present(f.Value)
		if !ok {
			continue
		}
		f.Set(target, v)
		n++
	}
	return n
}

// MergePassword hashes and stores value only when it has non-whitespace
// content. The untrimmed value is what gets hashed.
func MergePassword[T any](target *T, value *string, hash func(string) (string, error), set func(*T, string)) (bool, error) {
	if _, ok := present(value); !ok {
		return false, nil
	}
	digest, err := hash(*value)
	if err != nil {
		return false, err
	}
	set(target, digest)
	return true, nil
}

func present(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}
