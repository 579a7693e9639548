package deque

var _ Deque[int] = (*ArrDeque[int])(nil)

type ArrDeque[T any] struct {
	arr []T
	// 队首下标
	start int
	// 元素个数
	size int
}

// 工厂方法
func NewArrDeque[T any](capacity int) *ArrDeque[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ArrDeque[T]{arr: make([]T, capacity)}
}

func (ad *ArrDeque[T]) Size() int {
	return ad.size
}

func (ad *ArrDeque[T]) Capacity() int {
	return len(ad.arr)
}

func (ad *ArrDeque[T]) index(i int) int {
	if i < 0 || i >= ad.size {
		panic("index out of length")
	}
	return (ad.start + i) % len(ad.arr)
}

func (ad *ArrDeque[T]) Get(i int) T {
	return ad.arr[ad.index(i)]
}

func (ad *ArrDeque[T]) Set(i int, v T) {
	ad.arr[ad.index(i)] = v
}

func (ad *ArrDeque[T]) Traverse(f func(i int, item *T)) {
	for i := 0; i < ad.size; i++ {
		f(i, &ad.arr[(ad.start+i)%len(ad.arr)])
	}
}

// 以切片形式返回全部元素的拷贝
func (ad *ArrDeque[T]) Items() []T {
	items := make([]T, 0, ad.size)
	ad.Traverse(func(i int, item *T) {
		items = append(items, *item)
	})
	return items
}

func (ad *ArrDeque[T]) AddLast(v T) {
	if ad.IsFull() {
		ad.RemoveFirst()
	}
	ad.arr[(ad.start+ad.size)%len(ad.arr)] = v
	ad.size++
}

func (ad *ArrDeque[T]) RemoveLast() {
	if ad.IsEmpty() {
		return
	}
	var zero T
	ad.arr[(ad.start+ad.size-1)%len(ad.arr)] = zero
	ad.size--
}

func (ad *ArrDeque[T]) AddFirst(v T) {
	if ad.IsFull() {
		ad.RemoveLast()
	}
	ad.start = (ad.start - 1 + len(ad.arr)) % len(ad.arr)
	ad.arr[ad.start] = v
	ad.size++
}

func (ad *ArrDeque[T]) RemoveFirst() {
	if ad.IsEmpty() {
		return
	}
	var zero T
	ad.arr[ad.start] = zero
	ad.start = (ad.start + 1) % len(ad.arr)
	ad.size--
}

func (ad *ArrDeque[T]) Clear() {
	var zero T
	for i := range ad.arr {
		ad.arr[i] = zero
	}
	ad.start, ad.size = 0, 0
}

func (ad *ArrDeque[T]) IsFull() bool {
	return ad.size == len(ad.arr)
}

func (ad *ArrDeque[T]) IsEmpty() bool {
	return ad.size == 0
}
