package storage

// Key layout: o:<order-id>
var orderPrefix = []byte("o:")

func orderKey(id string) []byte {
	return append(append([]byte(nil), orderPrefix...), id...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
