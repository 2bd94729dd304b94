package router

// linearRouter holds routes whose matcher cannot live in the trie
// (regex and regex-with-prefix): every lookup scans the full list,
// ordered by descending complexity so the most specific regex wins
// ties without relying on scan order alone.
type linearRouter struct {
	routes []*Route
}

func newLinearRouter() *linearRouter { return &linearRouter{} }

func (l *linearRouter) add(route *Route) {
	l.routes = append(l.routes, route)
	sortByComplexityDesc(l.routes)
}

func (l *linearRouter) candidates() []*Route { return l.routes }
