/**
 *
 * 利用数组实现的定长双端队列，队列满时从另一端挤出元素。
 * 用于拟合收敛判断中的最近求值窗口，以及推送服务的历史消息缓存。
 *
 */

package deque

type Deque[T any] interface {
	// 队列的长度
	Size() int

	// 获取队列中对应下标的元素，0 为队首
	Get(i int) T

	// 设定队列中对应下标的元素
	Set(i int, v T)

	// 正向遍历
	Traverse(f func(i int, item *T))

	// 在队列结尾增加一个元素，队列满时移除队首
	AddLast(v T)

	// 在队列结尾删除一个元素
	RemoveLast()

	// 在队列头部增加一个元素，队列满时移除队尾
	AddFirst(v T)

	// 在队列头部删除一个元素
	RemoveFirst()

	// 清空
	Clear()

	IsFull() bool

	IsEmpty() bool
}
