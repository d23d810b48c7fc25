// internal/nodeid/doc.go

/*
Package nodeid provides a structured representation for the names of model
graph nodes, based on the canonical format `path[index]`.

The path is a dot-separated sequence of identifiers, e.g. `group.mu`. Only the
final segment may carry an element index, e.g. `rates[2]`, which addresses a
single element of a vector-valued node.

Moves and monitors refer to nodes by these names, so that they can be rebound
to the private copy of the graph owned by each chain.
*/
package nodeid
