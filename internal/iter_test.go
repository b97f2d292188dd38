package internal

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterSeq2Sorted(t *testing.T) {
	assert := assert.New(t)

	m := map[string]int{"c": 3, "a": 1, "b": 2}

	var keys []string
	var values []int
	for key, value := range IterSeq2Sorted(m) {
		keys = append(keys, key)
		values = append(values, value)
	}
	assert.Equal([]string{"a", "b", "c"}, keys)
	assert.Equal([]int{1, 2, 3}, values)

	keys = nil
	for key := range IterSeq2Sorted(m) {
		keys = append(keys, key)
		break
	}
	assert.Equal([]string{"a"}, keys)
}

func TestIterSeq2Concat(t *testing.T) {
	assert := assert.New(t)

	first := map[string]int{"b": 2, "a": 1}
	second := map[string]int{"c": 3}

	var keys []string
	for key := range IterSeq2Concat(IterSeq2Sorted(first), IterSeq2Sorted(second)) {
		keys = append(keys, key)
	}
	assert.Equal([]string{"a", "b", "c"}, keys)

	// The consumer can stop in the middle of any sequence.
	keys = nil
	for key := range IterSeq2Concat(IterSeq2Sorted(first), IterSeq2Sorted(second)) {
		keys = append(keys, key)
		if key == "b" {
			break
		}
	}
	assert.Equal([]string{"a", "b"}, keys)

	all := maps.Collect(IterSeq2Concat(maps.All(first), maps.All(second)))
	assert.Len(all, 3)
}
