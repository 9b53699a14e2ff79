package objstream

// Walk calls f for every node of the stream in depth-first wire order.
// References are visited as *Ref nodes and are not followed, so cyclic
// graphs are walked once. If f returns false the children of the node are
// skipped.
func Walk(s *Stream, f func(Node) bool) {
	for _, n := range s.Contents {
		walk(n, f)
	}
}

func walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *ClassDesc:
		for _, fd := range n.Fields {
			walk(fd.ClassName, f)
		}
		walkAll(n.Annotation, f)
		walk(n.Super, f)
	case *Object:
		walk(n.Desc, f)
		for _, d := range n.Data {
			walkAll(d.Values, f)
			walkAll(d.Annotation, f)
		}
	case *Array:
		walk(n.Desc, f)
		walkAll(n.Elements, f)
	case *Enum:
		walk(n.Desc, f)
		walk(n.Constant, f)
	case *Class:
		walk(n.Desc, f)
	case *Exception:
		walk(n.Throwable, f)
	}
}

func walkAll(nodes []Node, f func(Node) bool) {
	for _, n := range nodes {
		walk(n, f)
	}
}

// ClassNames returns names of all non-proxy class descriptors defined in
// the stream in order of appearance, each name once.
func ClassNames(s *Stream) []string {
	var (
		res  []string
		seen = make(map[string]bool)
	)
	Walk(s, func(n Node) bool {
		if cd, ok := n.(*ClassDesc); ok && !cd.Proxy && !seen[cd.Name] {
			seen[cd.Name] = true
			res = append(res, cd.Name)
		}
		return true
	})
	return res
}
