package chunk

// Tree is a parsed AST, rooted at Root, produced by Parser.Parse.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is a tree-sitter AST node, reduced to what the AST chunker needs to
// find top-level split points: byte span and child nodes.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	Children  []*Node
}
