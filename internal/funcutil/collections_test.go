package funcutil

import (
	"strconv"
	"testing"
)

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("Map: got %v", got)
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"a", "b"}, "b") || Contains([]string{"a"}, "z") {
		t.Errorf("Contains wrong")
	}
	if Contains(nil, 1) {
		t.Errorf("nil slice contains nothing")
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b"}
	keys := SortedKeys(m)
	if len(keys) != 3 || keys[0] != 1 || keys[2] != 3 {
		t.Errorf("SortedKeys: got %v", keys)
	}
}

func TestSorted(t *testing.T) {
	in := []int{3, 1, 2}
	out := Sorted(in)
	if out[0] != 1 || out[2] != 3 {
		t.Errorf("Sorted: got %v", out)
	}
}

func TestReverse(t *testing.T) {
	a := []int{1, 2, 3}
	Reverse(a)
	if a[0] != 3 || a[2] != 1 {
		t.Errorf("Reverse: got %v", a)
	}
}

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 10, "z": 3}
	Merge(a, b, func(x, y int) int { return x + y })
	if a["x"] != 1 || a["y"] != 12 || a["z"] != 3 {
		t.Errorf("Merge: got %v", a)
	}
}

func TestUnion(t *testing.T) {
	got := Union(map[string]bool{"a": true}, map[string]bool{"b": true})
	if !got["a"] || !got["b"] {
		t.Errorf("Union: got %v", got)
	}
}
