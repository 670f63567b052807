package cache

// lruNode is a node in a doubly-linked LRU list.
// The node stores its key for O(1) deletion from the parent map.
type lruNode[K comparable, V any] struct {
	key   K
	value V
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// lruList is a doubly-linked list for LRU eviction.
// The list is not thread-safe; callers must handle synchronization.
//
// The head is the most recently used, tail is least recently used.
// The zero value is an empty list.
type lruList[K comparable, V any] struct {
	head *lruNode[K, V]
	tail *lruNode[K, V]
	len  int
}

// Len returns the number of nodes in the list.
func (l *lruList[K, V]) Len() int {
	return l.len
}

// PushFront adds a new node at the front (most recently used).
func (l *lruList[K, V]) PushFront(key K, value V) *lruNode[K, V] {
	node := &lruNode[K, V]{key: key, value: value}
	l.linkFront(node)
	return node
}

// MoveToFront moves an existing node to the front.
func (l *lruList[K, V]) MoveToFront(node *lruNode[K, V]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove removes a node from the list.
func (l *lruList[K, V]) Remove(node *lruNode[K, V]) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// RemoveOldest removes and returns the least recently used node, or nil if
// the list is empty.
func (l *lruList[K, V]) RemoveOldest() *lruNode[K, V] {
	node := l.tail
	if node == nil {
		return nil
	}
	l.unlink(node)
	return node
}

// Clear removes all nodes from the list.
func (l *lruList[K, V]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *lruList[K, V]) linkFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink removes a node from the list and clears its links.
func (l *lruList[K, V]) unlink(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	l.len--
}
