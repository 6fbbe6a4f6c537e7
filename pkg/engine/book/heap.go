package book

// maxTickHeap implements heap.Interface for bid price ticks (highest on top).
// Manipulate through container/heap (Init, Push, Pop, Remove).
type maxTickHeap []int64

func (h maxTickHeap) Len() int           { return len(h) }
func (h maxTickHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h maxTickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxTickHeap) Push(x interface{}) {
	*h = append(*h, x.(int64))
}

func (h *maxTickHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top element without removing it
func (h maxTickHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}

// minTickHeap implements heap.Interface for ask price ticks (lowest on top)
type minTickHeap []int64

func (h minTickHeap) Len() int           { return len(h) }
func (h minTickHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minTickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minTickHeap) Push(x interface{}) {
	*h = append(*h, x.(int64))
}

func (h *minTickHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top element without removing it
func (h minTickHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}
