package logtree

// Builder aggregates structured logs into a folder -> source -> group tree.
// Folders keep the order they were first added in; sources inside a folder
// are ordered by StepNumber when the tree is built.
type Builder struct {
	folders *Branch
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{folders: NewBranch()}
}

// Add stores log under folder/source. Adding the same source twice replaces
// the earlier log.
func (b *Builder) Add(folder, source string, log StructuredLog) {
	node, ok := b.folders.Get(folder)
	if !ok {
		node = BranchNode(NewBranch())
		b.folders.Set(folder, node)
	}
	node.Branch().Set(source, log.Node())
}

// Tree returns the aggregated tree. The Builder must not be used afterwards.
func (b *Builder) Tree() Node {
	for _, folder := range b.folders.Keys() {
		node, _ := b.folders.Get(folder)
		node.Branch().SortByStep()
	}
	return BranchNode(b.folders)
}
