package cart

import "github.com/roach88/shopstate/internal/model"

// Merge folds local into authoritative: quantities are summed per key and
// unknown keys are appended in local order. Neither input is modified.
//
// Lines are normalised, so local lines that share a key with each other are
// folded together as well.
func Merge(authoritative, local []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(authoritative)+len(local))
	index := make(map[model.CartKey]int, len(authoritative)+len(local))

	add := func(l model.CartLine) {
		l = l.Normalized()
		if i, ok := index[l.Key()]; ok {
			out[i].Quantity += l.Quantity
			return
		}
		index[l.Key()] = len(out)
		out = append(out, l)
	}
	for _, l := range authoritative {
		add(l)
	}
	for _, l := range local {
		add(l)
	}
	return out
}

func indexOf(lines []model.CartLine, key model.CartKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func totalQuantity(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func totalPrice(lines []model.CartLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Subtotal()
	}
	return sum
}
