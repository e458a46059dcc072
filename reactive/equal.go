package reactive

import "github.com/google/go-cmp/cmp"

// Equal reports whether two values are deeply equal. Comparisons that
// panic (values carrying unexported fields, live proxies, funcs) are
// treated as not equal: failing open means a questionable write still
// emits its change notification rather than silently dropping a real
// change.
func Equal(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return cmp.Equal(a, b)
}
