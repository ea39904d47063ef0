package iterator

import "fmt"

// Iterate drives iter to completion, handing each element to processFunc.
// The processFunc controls iteration flow:
//   - Return (false, nil) to stop iteration early
//   - Return (true, nil) to continue
//   - Return (_, error) to stop with error
func Iterate[T any](iter Iterator[T], processFunc func(T) (continueLooping bool, err error)) error {
	for {
		hasNext, err := iter.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			return nil
		}

		item, err := iter.Next()
		if err != nil {
			return err
		}

		shouldContinue, err := processFunc(item)
		if err != nil {
			return err
		}
		if !shouldContinue {
			return nil
		}
	}
}

// ForEach applies processFunc to every element. It stops at the first error.
func ForEach[T any](iter Iterator[T], processFunc func(T) error) error {
	return Iterate(iter, func(item T) (bool, error) {
		return true, processFunc(item)
	})
}

// Take returns up to n elements from the iterator.
func Take[T any](iter Iterator[T], n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("take: negative count %d", n)
	}
	results := make([]T, 0, n)
	if n == 0 {
		return results, nil
	}
	err := Iterate(iter, func(item T) (bool, error) {
		results = append(results, item)
		return len(results) < n, nil
	})
	return results, err
}

// Collect materializes all remaining elements.
func Collect[T any](iter Iterator[T]) ([]T, error) {
	var results []T
	err := ForEach(iter, func(item T) error {
		results = append(results, item)
		return nil
	})
	return results, err
}
