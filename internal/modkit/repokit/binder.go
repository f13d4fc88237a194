package repokit

// Binder builds a repo bound to a specific Queryer. It lets transactional
// code rebind the same repo onto a tx-backed Queryer
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor function to the Binder interface
type BindFunc[T any] func(Queryer) T

// Bind implements Binder
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// RequireQueryer panics on a nil Queryer; that is a wiring bug, not a
// runtime condition
func RequireQueryer(q Queryer) Queryer {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return q
}

// MustBind binds b to q, panicking when q is nil
func MustBind[T any](b Binder[T], q Queryer) T {
	return b.Bind(RequireQueryer(q))
}
