package gpu

type releaser interface {
	Release()
}

// resourceSet tracks the objects allocated for a single dispatch and
// releases them in reverse allocation order. Every kernel defers
// releaseAll immediately, so buffers are freed on success, on shader
// compile failure, and on submit failure alike.
type resourceSet struct {
	resources []releaser
}

func (rs *resourceSet) add(r releaser) {
	rs.resources = append(rs.resources, r)
}

func (rs *resourceSet) releaseAll() {
	for i := len(rs.resources) - 1; i >= 0; i-- {
		rs.resources[i].Release()
	}
	rs.resources = nil
}
