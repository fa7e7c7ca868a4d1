package assembly

// PropagateMissing marks every type in types that inherits from or imports
// a missing type as missing, until no flag changes. Types outside the slice
// (from earlier assemblies) act as seeds only. It returns the newly marked
// types in marking order.
//
// The walk is a worklist over reverse dependency edges; each type is queued
// at most once.
func PropagateMissing(types []*Type) []*Type {
	dependents := make(map[*Type][]*Type)
	for _, t := range types {
		if t.base != nil {
			dependents[t.base] = append(dependents[t.base], t)
		}
		for _, imp := range t.imports {
			if imp == t.base {
				continue
			}
			dependents[imp] = append(dependents[imp], t)
		}
	}

	queued := make(map[*Type]bool)
	var queue []*Type
	push := func(t *Type) {
		if !queued[t] {
			queued[t] = true
			queue = append(queue, t)
		}
	}

	for _, t := range types {
		if t.missing {
			push(t)
		}
	}
	for _, t := range types {
		if t.base != nil && t.base.missing {
			push(t.base)
		}
		for _, imp := range t.imports {
			if imp.missing {
				push(imp)
			}
		}
	}

	var marked []*Type
	for len(queue) > 0 {
		missing := queue[0]
		queue = queue[1:]

		for _, dep := range dependents[missing] {
			if dep.missing {
				continue
			}
			if dep.base == missing {
				dep.SetMissing("incomplete: missing base type %s", missing.fullName)
			} else {
				dep.SetMissing("missing import %s", missing.fullName)
			}
			marked = append(marked, dep)
			push(dep)
		}
	}

	return marked
}

// Compact partitions types into survivors and missing types, preserving the
// relative order of both. The input slice is not modified.
func Compact(types []*Type) (live, removed []*Type) {
	live = make([]*Type, 0, len(types))
	for read := 0; read < len(types); read++ {
		t := types[read]
		if t.missing {
			removed = append(removed, t)
			continue
		}
		live = append(live, t)
	}
	return live, removed
}
