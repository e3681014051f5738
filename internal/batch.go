package internal

// Partition splits targets into consecutive batches of at most size entries.
// Batches share the backing array of targets and must not be appended to.
func Partition(targets []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, configErr("batch size must be positive, got %d", size)
	}
	if len(targets) == 0 {
		return nil, nil
	}
	batches := make([][]string, 0, (len(targets)+size-1)/size)
	for pos := 0; pos < len(targets); pos += size {
		end := min(pos+size, len(targets))
		batches = append(batches, targets[pos:end:end])
	}
	return batches, nil
}
