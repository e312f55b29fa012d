package train

// Scan threads carry through step for every element of xs in order and
// collects the per-step outputs.
//
// It stops at the first error and then returns the zero carry and no
// outputs.
func Scan[C, X, Y any](init C, xs []X, step func(C, X) (C, Y, error)) (C, []Y, error) {
	carry := init
	ys := make([]Y, 0, len(xs))
	for _, x := range xs {
		next, y, err := step(carry, x)
		if err != nil {
			var zero C
			return zero, nil, err
		}
		carry = next
		ys = append(ys, y)
	}
	return carry, ys, nil
}
