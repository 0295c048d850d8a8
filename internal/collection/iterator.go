package collection

// iterator walks the tree in key order from a starting node
type iterator struct {
	tree        *redBlackTree
	currentNode *redBlackNode
	pos         position
}

type position byte

const (
	begin, onmyway, end position = 0, 1, 2
)

// iteratorAt returns an iterator positioned on node, nil node is exhausted
func (t *redBlackTree) iteratorAt(node *redBlackNode) iterator {
	if node == nil {
		return iterator{tree: t, pos: end}
	}
	return iterator{tree: t, currentNode: node, pos: onmyway}
}

// next moves the iterator to the next element
func (it *iterator) next() bool {
	if it.pos != onmyway {
		it.currentNode = nil
		return false
	}

	if it.currentNode.right != nil {
		it.currentNode = it.currentNode.right
		for it.currentNode.left != nil {
			it.currentNode = it.currentNode.left
		}
		return true
	}

	for it.currentNode.parent != nil {
		node := it.currentNode
		it.currentNode = it.currentNode.parent
		if node == it.currentNode.left {
			return true
		}
	}

	it.currentNode = nil
	it.pos = end
	return false
}

// prev moves the iterator to the previous element
func (it *iterator) prev() bool {
	if it.pos != onmyway {
		it.currentNode = nil
		return false
	}

	if it.currentNode.left != nil {
		it.currentNode = it.currentNode.left
		for it.currentNode.right != nil {
			it.currentNode = it.currentNode.right
		}
		return true
	}

	for it.currentNode.parent != nil {
		node := it.currentNode
		it.currentNode = it.currentNode.parent
		if node == it.currentNode.right {
			return true
		}
	}

	it.currentNode = nil
	it.pos = begin
	return false
}

// valid reports whether the iterator stands on an element
func (it *iterator) valid() bool {
	return it.pos == onmyway && it.currentNode != nil
}

// node returns the current element
func (it *iterator) node() *redBlackNode {
	return it.currentNode
}
