package logtree

// Clean runs the second noise pass over a tree or any of its subtrees.
//
// Lines are stripped of timestamps, git chatter and blank lines. Branches are
// cleaned recursively and keep only keys whose cleaned value is non-empty; a
// branch left without keys becomes the zero Node. Clean is idempotent.
func Clean(n Node) Node {
	switch n.Kind() {
	case KindLines:
		return cleanLines(n.Lines())
	case KindBranch:
		return cleanBranch(n.Branch())
	default:
		return n
	}
}

func cleanLines(lines []string) Node {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = StripTimestamp(line)
		if line == "" || IsGitChatter(line) {
			continue
		}
		out = append(out, line)
	}
	return Node{kind: KindLines, lines: out}
}

func cleanBranch(b *Branch) Node {
	cleaned := NewBranch()
	for _, key := range b.Keys() {
		child, _ := b.Get(key)
		c := Clean(child)
		if c.IsEmpty() {
			continue
		}
		cleaned.Set(key, c)
	}
	if cleaned.Len() == 0 {
		return Node{}
	}
	return BranchNode(cleaned)
}
